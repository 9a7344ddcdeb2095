package badger

import (
	"context"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/marmos91/dittostore/pkg/auth"
	"github.com/marmos91/dittostore/pkg/directory"
)

// aclEntity is a loaded ACL-bearing record together with the ancestor chain
// and a writeback function for mutations.
type aclEntity struct {
	acls      directory.ACLs
	ancestors []directory.ACLs
	save      func(txn *badger.Txn, acls directory.ACLs) error
}

// loadACLEntity locates the ACL-bearing record behind a resolved resource.
// For versions the owning object counts as an ancestor.
func loadACLEntity(txn *badger.Txn, res *directory.Resource) (*aclEntity, error) {
	rec, ancestors, err := walk(txn, res.Name)
	if err != nil {
		return nil, err
	}

	switch res.Type {
	case directory.TypeNamespace, directory.TypeObject:
		if rec.Type != res.Type {
			return nil, directory.NewNotFound(res.String())
		}
		key := resourceKey(res.Name)
		return &aclEntity{
			acls:      modelACLs(rec.ACLs),
			ancestors: ancestors,
			save: func(txn *badger.Txn, acls directory.ACLs) error {
				rec.ACLs = wireACLs(acls)
				return putJSON(txn, key, rec)
			},
		}, nil

	case directory.TypeVersion:
		if rec.Type != directory.TypeObject {
			return nil, directory.NewNotFound(res.String())
		}
		var vrec versionRecord
		found, err := getJSON(txn, versionKey(res.Name, res.Version), &vrec)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, directory.NewNotFound(res.String())
		}
		key := versionKey(res.Name, res.Version)
		return &aclEntity{
			acls:      modelACLs(vrec.ACLs),
			ancestors: append(ancestors, modelACLs(rec.ACLs)),
			save: func(txn *badger.Txn, acls directory.ACLs) error {
				vrec.ACLs = wireACLs(acls)
				return putJSON(txn, key, &vrec)
			},
		}, nil

	default:
		return nil, directory.NewNotFound(res.String())
	}
}

// aclCategory loads one declared category after enforcing ACL administration.
func aclCategory(txn *badger.Txn, res *directory.Resource, access string, identity *auth.Identity) (*aclEntity, directory.RoleSet, error) {
	entity, err := loadACLEntity(txn, res)
	if err != nil {
		return nil, nil, err
	}
	if err := directory.Enforce(identity, res.String(), entity.acls, entity.ancestors, "owner"); err != nil {
		return nil, nil, err
	}
	if !directory.CategoryDeclared(res.Type, access) {
		return nil, nil, directory.NewNotFound(res.String() + ";acl/" + access)
	}

	set, ok := entity.acls[access]
	if !ok {
		set = directory.NewRoleSet()
		entity.acls[access] = set
	}
	return entity, set, nil
}

// GetACLs returns the full ACL mapping of a resource.
func (d *Directory) GetACLs(ctx context.Context, res *directory.Resource, identity *auth.Identity) (directory.ACLs, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	var out directory.ACLs
	err := d.db.View(func(txn *badger.Txn) error {
		entity, err := loadACLEntity(txn, res)
		if err != nil {
			return err
		}
		if err := directory.Enforce(identity, res.String(), entity.acls, entity.ancestors, "owner"); err != nil {
			return err
		}
		out = entity.acls.Clone()
		return nil
	})
	return out, err
}

// GetACL returns one category's role set.
func (d *Directory) GetACL(ctx context.Context, res *directory.Resource, access string, identity *auth.Identity) (directory.RoleSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	var out directory.RoleSet
	err := d.db.View(func(txn *badger.Txn) error {
		_, set, err := aclCategory(txn, res, access, identity)
		if err != nil {
			return err
		}
		out = set.Clone()
		return nil
	})
	return out, err
}

// CheckACLRole succeeds iff role is a member of the category.
func (d *Directory) CheckACLRole(ctx context.Context, res *directory.Resource, access, role string, identity *auth.Identity) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.db.View(func(txn *badger.Txn) error {
		_, set, err := aclCategory(txn, res, access, identity)
		if err != nil {
			return err
		}
		if !set.Contains(role) {
			return directory.NewNotFound(res.String() + ";acl/" + access + "/" + role)
		}
		return nil
	})
}

// SetACLRole adds one role to a category. Idempotent.
func (d *Directory) SetACLRole(ctx context.Context, res *directory.Resource, access, role string, identity *auth.Identity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if role == "" {
		return directory.NewBadRequest("role must not be empty")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	return d.db.Update(func(txn *badger.Txn) error {
		entity, set, err := aclCategory(txn, res, access, identity)
		if err != nil {
			return err
		}
		set[role] = struct{}{}
		return entity.save(txn, entity.acls)
	})
}

// DropACLRole removes one role from a category; NotFound if absent.
func (d *Directory) DropACLRole(ctx context.Context, res *directory.Resource, access, role string, identity *auth.Identity) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	return d.db.Update(func(txn *badger.Txn) error {
		entity, set, err := aclCategory(txn, res, access, identity)
		if err != nil {
			return err
		}
		if !set.Contains(role) {
			return directory.NewNotFound(res.String() + ";acl/" + access + "/" + role)
		}
		delete(set, role)
		return entity.save(txn, entity.acls)
	})
}

// SetACL replaces a category wholesale.
func (d *Directory) SetACL(ctx context.Context, res *directory.Resource, access string, roles []string, identity *auth.Identity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, role := range roles {
		if role == "" {
			return directory.NewBadRequest("role must not be empty")
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	return d.db.Update(func(txn *badger.Txn) error {
		entity, _, err := aclCategory(txn, res, access, identity)
		if err != nil {
			return err
		}
		entity.acls[access] = directory.NewRoleSet(roles...)
		return entity.save(txn, entity.acls)
	})
}

// ClearACL resets a category to the empty set.
func (d *Directory) ClearACL(ctx context.Context, res *directory.Resource, access string, identity *auth.Identity) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	return d.db.Update(func(txn *badger.Txn) error {
		entity, _, err := aclCategory(txn, res, access, identity)
		if err != nil {
			return err
		}
		entity.acls[access] = directory.NewRoleSet()
		return entity.save(txn, entity.acls)
	})
}
