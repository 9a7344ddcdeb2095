package memory

import (
	"context"
	"sort"

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

	n, _, err := d.lookup(name)
	if err != nil {
		return nil, err
	}
	return n.resource(), nil
}

// VersionResolve resolves an explicit version token against an object.
func (d *Directory) VersionResolve(ctx context.Context, name, version string) (*directory.Resource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	n, _, err := d.lookup(name)
	if err != nil {
		return nil, err
	}
	if n.typ != directory.TypeObject {
		return nil, directory.NewNotFound(name + ":" + version)
	}
	v, ok := n.versions[version]
	if !ok {
		return nil, directory.NewNotFound(name + ":" + version)
	}
	return n.versionResource(v), nil
}

// CurrentVersion resolves a live object reference to its current version.
func (d *Directory) CurrentVersion(ctx context.Context, name string) (*directory.Resource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	n, _, err := d.lookup(name)
	if err != nil {
		return nil, err
	}
	if n.typ != directory.TypeObject {
		return nil, directory.NewConflict("resource has no content", name)
	}
	if n.current == "" {
		return nil, directory.NewConflict("object has no current version", name)
	}
	return n.versionResource(n.versions[n.current]), nil
}

// List returns the sorted canonical names of a namespace's direct children.
func (d *Directory) List(ctx context.Context, name string, identity *auth.Identity) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	n, ancestors, err := d.lookup(name)
	if err != nil {
		return nil, err
	}
	if n.typ != directory.TypeNamespace {
		return nil, directory.NewNotFound(name)
	}
	if err := directory.Enforce(identity, name, n.acls, ancestors, "read", "owner"); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(n.children))
	for _, child := range n.children {
		names = append(names, child.name)
	}
	sort.Strings(names)
	return names, nil
}

// ContentIDs walks the whole tree and collects every content ID referenced
// by a version or an in-progress upload job.
func (d *Directory) ContentIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	var ids []string
	var visit func(n *node)
	visit = func(n *node) {
		for _, v := range n.versions {
			ids = append(ids, v.meta.ContentID)
		}
		for _, u := range n.uploads {
			ids = append(ids, u.contentID)
		}
		for _, child := range n.children {
			visit(child)
		}
	}
	visit(d.root)
	return ids, nil
}

// EnforceRead checks content-read access on a resolved resource.
func (d *Directory) EnforceRead(ctx context.Context, res *directory.Resource, identity *auth.Identity) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	acls, ancestors, err := d.aclTarget(res)
	if err != nil {
		return err
	}
	return directory.Enforce(identity, res.String(), acls, ancestors, "read", "owner")
}
