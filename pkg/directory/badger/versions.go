package badger

import (
	"context"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/marmos91/dittostore/pkg/auth"
	"github.com/marmos91/dittostore/pkg/directory"
)

// CreateNamespace creates an empty namespace under an existing parent.
func (d *Directory) CreateNamespace(ctx context.Context, name string, identity *auth.Identity) (*directory.Resource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !directory.ValidName(name) || name == "/" {
		return nil, directory.NewBadRequest("malformed resource name")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	var res *directory.Resource
	err := d.db.Update(func(txn *badger.Txn) error {
		parent, ancestors, err := walk(txn, parentName(name))
		if err != nil {
			return err
		}
		if parent.Type != directory.TypeNamespace {
			return directory.NewConflict("parent is not a namespace", name)
		}
		if err := directory.Enforce(identity, parentName(name), modelACLs(parent.ACLs), ancestors, "create", "owner"); err != nil {
			return err
		}

		var existing resourceRecord
		found, err := getJSON(txn, resourceKey(name), &existing)
		if err != nil {
			return err
		}
		if found {
			return directory.NewConflict("name already in use", name)
		}

		rec := resourceRecord{
			Type:      directory.TypeNamespace,
			ACLs:      wireACLs(directory.NewACLs(directory.TypeNamespace, identity)),
			CreatedAt: time.Now(),
		}
		if err := putJSON(txn, resourceKey(name), &rec); err != nil {
			return err
		}
		res = rec.resource(name)
		return nil
	})
	return res, err
}

// DeleteNamespace removes an empty, non-root namespace.
func (d *Directory) DeleteNamespace(ctx context.Context, name string, identity *auth.Identity) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	return d.db.Update(func(txn *badger.Txn) error {
		rec, ancestors, err := walk(txn, name)
		if err != nil {
			return err
		}
		if rec.Type != directory.TypeNamespace {
			return directory.NewNotFound(name)
		}
		if name == "/" {
			return directory.NewConflict("cannot delete the root namespace", name)
		}
		if hasChildren(txn, name) {
			return directory.NewConflict("namespace is not empty", name)
		}
		if err := directory.Enforce(identity, name, modelACLs(rec.ACLs), ancestors, "owner"); err != nil {
			return err
		}
		return txn.Delete(resourceKey(name))
	})
}

// CreateVersion records a new version, creating the object on first write.
func (d *Directory) CreateVersion(ctx context.Context, name string, meta directory.VersionMeta, identity *auth.Identity) (*directory.Resource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	var res *directory.Resource
	err := d.db.Update(func(txn *badger.Txn) error {
		rec, err := objectForWrite(txn, name, identity)
		if err != nil {
			return err
		}

		token := uuid.NewString()
		vrec := versionRecord{
			NBytes:      meta.NBytes,
			ContentType: meta.ContentType,
			ContentMD5:  meta.ContentMD5,
			ContentID:   meta.ContentID,
			ACLs:        wireACLs(directory.NewACLs(directory.TypeVersion, identity)),
			CreatedAt:   time.Now(),
		}
		if err := putJSON(txn, versionKey(name, token), &vrec); err != nil {
			return err
		}

		rec.History = append(rec.History, token)
		rec.Current = token
		if err := putJSON(txn, resourceKey(name), rec); err != nil {
			return err
		}
		res = vrec.resource(name, token)
		return nil
	})
	return res, err
}

// DeleteObject removes an object and its whole version history, returning
// the content IDs of the removed versions.
func (d *Directory) DeleteObject(ctx context.Context, name string, identity *auth.Identity) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	var orphaned []string
	err := d.db.Update(func(txn *badger.Txn) error {
		rec, ancestors, err := walk(txn, name)
		if err != nil {
			return err
		}
		if rec.Type != directory.TypeObject {
			return directory.NewNotFound(name)
		}
		if err := directory.Enforce(identity, name, modelACLs(rec.ACLs), ancestors, "owner"); err != nil {
			return err
		}

		for _, token := range rec.History {
			var vrec versionRecord
			found, err := getJSON(txn, versionKey(name, token), &vrec)
			if err != nil {
				return err
			}
			if found {
				orphaned = append(orphaned, vrec.ContentID)
			}
			if err := txn.Delete(versionKey(name, token)); err != nil {
				return err
			}
		}
		return txn.Delete(resourceKey(name))
	})
	if err != nil {
		return nil, err
	}
	return orphaned, nil
}

// DeleteVersion removes one version; the newest remaining becomes current.
func (d *Directory) DeleteVersion(ctx context.Context, name, token string, identity *auth.Identity) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	return d.db.Update(func(txn *badger.Txn) error {
		rec, ancestors, err := walk(txn, name)
		if err != nil {
			return err
		}
		if rec.Type != directory.TypeObject {
			return directory.NewNotFound(name + ":" + token)
		}

		var vrec versionRecord
		found, err := getJSON(txn, versionKey(name, token), &vrec)
		if err != nil {
			return err
		}
		if !found {
			return directory.NewNotFound(name + ":" + token)
		}
		chain := append(ancestors, modelACLs(rec.ACLs))
		if err := directory.Enforce(identity, name+":"+token, modelACLs(vrec.ACLs), chain, "owner"); err != nil {
			return err
		}

		if err := txn.Delete(versionKey(name, token)); err != nil {
			return err
		}
		for i, t := range rec.History {
			if t == token {
				rec.History = append(rec.History[:i], rec.History[i+1:]...)
				break
			}
		}
		if rec.Current == token {
			rec.Current = ""
			if len(rec.History) > 0 {
				rec.Current = rec.History[len(rec.History)-1]
			}
		}
		return putJSON(txn, resourceKey(name), rec)
	})
}

// objectForWrite loads (or creates) the object record behind a version or
// upload write, enforcing "write" on existing objects and "create" on the
// parent namespace for new ones. The returned record is not yet persisted
// when newly created; callers always put it back after mutating.
func objectForWrite(txn *badger.Txn, name string, identity *auth.Identity) (*resourceRecord, error) {
	if !directory.ValidName(name) || name == "/" {
		return nil, directory.NewBadRequest("malformed resource name")
	}

	rec, ancestors, err := walk(txn, name)
	if err == nil {
		if rec.Type != directory.TypeObject {
			return nil, directory.NewConflict("name is a namespace", name)
		}
		if err := directory.Enforce(identity, name, modelACLs(rec.ACLs), ancestors, "write", "owner"); err != nil {
			return nil, err
		}
		return rec, nil
	}
	if derr, ok := err.(*directory.Error); !ok || derr.Code != directory.CodeNotFound {
		return nil, err
	}

	parent, parentAncestors, perr := walk(txn, parentName(name))
	if perr != nil {
		return nil, directory.NewNotFound(name)
	}
	if parent.Type != directory.TypeNamespace {
		return nil, directory.NewConflict("parent is not a namespace", name)
	}
	if err := directory.Enforce(identity, parentName(name), modelACLs(parent.ACLs), parentAncestors, "create", "owner"); err != nil {
		return nil, err
	}

	return &resourceRecord{
		Type:      directory.TypeObject,
		ACLs:      wireACLs(directory.NewACLs(directory.TypeObject, identity)),
		CreatedAt: time.Now(),
	}, nil
}

// parentName returns the canonical name of a name's parent namespace.
func parentName(name string) string {
	for i := len(name) - 1; i > 0; i-- {
		if name[i] == '/' {
			return name[:i]
		}
	}
	return "/"
}
