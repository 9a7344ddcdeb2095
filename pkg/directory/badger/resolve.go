package badger

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/marmos91/dittostore/pkg/auth"
	"github.com/marmos91/dittostore/pkg/directory"
)

// NameResolve looks up a canonical name.
func (d *Directory) NameResolve(ctx context.Context, name string) (*directory.Resource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	var res *directory.Resource
	err := d.db.View(func(txn *badger.Txn) error {
		rec, _, err := walk(txn, name)
		if err != nil {
			return err
		}
		res = rec.resource(name)
		return nil
	})
	return res, err
}

// VersionResolve resolves an explicit version token against an object.
func (d *Directory) VersionResolve(ctx context.Context, name, version string) (*directory.Resource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	var res *directory.Resource
	err := d.db.View(func(txn *badger.Txn) error {
		rec, _, err := walk(txn, name)
		if err != nil {
			return err
		}
		if rec.Type != directory.TypeObject {
			return directory.NewNotFound(name + ":" + version)
		}

		var vrec versionRecord
		found, err := getJSON(txn, versionKey(name, version), &vrec)
		if err != nil {
			return err
		}
		if !found {
			return directory.NewNotFound(name + ":" + version)
		}
		res = vrec.resource(name, version)
		return nil
	})
	return res, err
}

// CurrentVersion resolves a live object reference to its current version.
func (d *Directory) CurrentVersion(ctx context.Context, name string) (*directory.Resource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	var res *directory.Resource
	err := d.db.View(func(txn *badger.Txn) error {
		rec, _, err := walk(txn, name)
		if err != nil {
			return err
		}
		if rec.Type != directory.TypeObject {
			return directory.NewConflict("resource has no content", name)
		}
		if rec.Current == "" {
			return directory.NewConflict("object has no current version", name)
		}

		var vrec versionRecord
		found, err := getJSON(txn, versionKey(name, rec.Current), &vrec)
		if err != nil {
			return err
		}
		if !found {
			return directory.NewConflict("object has no current version", name)
		}
		res = vrec.resource(name, rec.Current)
		return nil
	})
	return res, err
}

// List returns the sorted canonical names of a namespace's direct children.
func (d *Directory) List(ctx context.Context, name string, identity *auth.Identity) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	var names []string
	err := d.db.View(func(txn *badger.Txn) error {
		rec, ancestors, err := walk(txn, name)
		if err != nil {
			return err
		}
		if rec.Type != directory.TypeNamespace {
			return directory.NewNotFound(name)
		}
		if err := directory.Enforce(identity, name, modelACLs(rec.ACLs), ancestors, "read", "owner"); err != nil {
			return err
		}
		names = listChildren(txn, name)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// ContentIDs scans every version and upload record and collects the content
// IDs they reference.
func (d *Directory) ContentIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	var ids []string
	err := d.db.View(func(txn *badger.Txn) error {
		for _, prefix := range []string{versionPrefix, uploadPrefix} {
			it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(prefix)})
			for it.Rewind(); it.Valid(); it.Next() {
				var rec struct {
					ContentID string `json:"content_id"`
				}
				err := it.Item().Value(func(val []byte) error {
					return json.Unmarshal(val, &rec)
				})
				if err != nil {
					it.Close()
					return fmt.Errorf("failed to decode record %q: %w", it.Item().Key(), err)
				}
				ids = append(ids, rec.ContentID)
			}
			it.Close()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// EnforceRead checks content-read access on a resolved resource.
func (d *Directory) EnforceRead(ctx context.Context, res *directory.Resource, identity *auth.Identity) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.db.View(func(txn *badger.Txn) error {
		entity, err := loadACLEntity(txn, res)
		if err != nil {
			return err
		}
		return directory.Enforce(identity, res.String(), entity.acls, entity.ancestors, "read", "owner")
	})
}
