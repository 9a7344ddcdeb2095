package memory

import (
	"context"

	"github.com/marmos91/dittostore/pkg/auth"
	"github.com/marmos91/dittostore/pkg/directory"
)

// aclCategory locates one declared category on a resource after enforcing
// ACL-administration access. Callers must hold the appropriate lock.
func (d *Directory) aclCategory(res *directory.Resource, access string, identity *auth.Identity) (directory.ACLs, directory.RoleSet, error) {
	acls, ancestors, err := d.aclTarget(res)
	if err != nil {
		return nil, nil, err
	}
	if err := directory.Enforce(identity, res.String(), acls, ancestors, "owner"); err != nil {
		return nil, nil, err
	}
	if !directory.CategoryDeclared(res.Type, access) {
		return nil, nil, directory.NewNotFound(res.String() + ";acl/" + access)
	}

	set, ok := acls[access]
	if !ok {
		// declared categories are materialized at creation; guard anyway
		set = directory.NewRoleSet()
		acls[access] = set
	}
	return acls, set, nil
}

// GetACLs returns the full ACL mapping of a resource.
func (d *Directory) GetACLs(ctx context.Context, res *directory.Resource, identity *auth.Identity) (directory.ACLs, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	acls, ancestors, err := d.aclTarget(res)
	if err != nil {
		return nil, err
	}
	if err := directory.Enforce(identity, res.String(), acls, ancestors, "owner"); err != nil {
		return nil, err
	}
	return acls.Clone(), nil
}

// GetACL returns one category's role set.
func (d *Directory) GetACL(ctx context.Context, res *directory.Resource, access string, identity *auth.Identity) (directory.RoleSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	_, set, err := d.aclCategory(res, access, identity)
	if err != nil {
		return nil, err
	}
	return set.Clone(), nil
}

// CheckACLRole succeeds iff role is a member of the category.
func (d *Directory) CheckACLRole(ctx context.Context, res *directory.Resource, access, role string, identity *auth.Identity) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	_, set, err := d.aclCategory(res, access, identity)
	if err != nil {
		return err
	}
	if !set.Contains(role) {
		return directory.NewNotFound(res.String() + ";acl/" + access + "/" + role)
	}
	return nil
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

	_, set, err := d.aclCategory(res, access, identity)
	if err != nil {
		return err
	}
	set[role] = struct{}{}
	return nil
}

// DropACLRole removes one role from a category; NotFound if absent.
func (d *Directory) DropACLRole(ctx context.Context, res *directory.Resource, access, role string, identity *auth.Identity) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	_, set, err := d.aclCategory(res, access, identity)
	if err != nil {
		return err
	}
	if !set.Contains(role) {
		return directory.NewNotFound(res.String() + ";acl/" + access + "/" + role)
	}
	delete(set, role)
	return nil
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

	acls, _, err := d.aclCategory(res, access, identity)
	if err != nil {
		return err
	}
	acls[access] = directory.NewRoleSet(roles...)
	return nil
}

// ClearACL resets a category to the empty set.
func (d *Directory) ClearACL(ctx context.Context, res *directory.Resource, access string, identity *auth.Identity) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	acls, _, err := d.aclCategory(res, access, identity)
	if err != nil {
		return err
	}
	acls[access] = directory.NewRoleSet()
	return nil
}
