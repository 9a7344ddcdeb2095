package memory

import (
	"context"
	"time"

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

	parent, ancestors, err := d.lookup(parentName(name))
	if err != nil {
		return nil, err
	}
	if parent.typ != directory.TypeNamespace {
		return nil, directory.NewConflict("parent is not a namespace", name)
	}
	if err := directory.Enforce(identity, parent.name, parent.acls, ancestors, "create", "owner"); err != nil {
		return nil, err
	}

	segment := lastSegment(name)
	if _, exists := parent.children[segment]; exists {
		return nil, directory.NewConflict("name already in use", name)
	}

	child := newNamespaceNode(name, identity)
	parent.children[segment] = child
	return child.resource(), nil
}

// DeleteNamespace removes an empty, non-root namespace.
func (d *Directory) DeleteNamespace(ctx context.Context, name string, identity *auth.Identity) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	n, ancestors, err := d.lookup(name)
	if err != nil {
		return err
	}
	if n.typ != directory.TypeNamespace {
		return directory.NewNotFound(name)
	}
	if name == "/" {
		return directory.NewConflict("cannot delete the root namespace", name)
	}
	if len(n.children) > 0 {
		return directory.NewConflict("namespace is not empty", name)
	}
	if err := directory.Enforce(identity, name, n.acls, ancestors, "owner"); err != nil {
		return err
	}

	d.detach(name)
	return nil
}

// CreateVersion records a new version, creating the object on first write.
func (d *Directory) CreateVersion(ctx context.Context, name string, meta directory.VersionMeta, identity *auth.Identity) (*directory.Resource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	n, err := d.objectForWrite(name, identity)
	if err != nil {
		return nil, err
	}
	return n.versionResource(n.appendVersion(meta, identity)), nil
}

// DeleteObject removes an object and its whole version history, returning
// the content IDs of the removed versions.
func (d *Directory) DeleteObject(ctx context.Context, name string, identity *auth.Identity) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	n, ancestors, err := d.lookup(name)
	if err != nil {
		return nil, err
	}
	if n.typ != directory.TypeObject {
		return nil, directory.NewNotFound(name)
	}
	if err := directory.Enforce(identity, name, n.acls, ancestors, "owner"); err != nil {
		return nil, err
	}

	orphaned := make([]string, 0, len(n.versions))
	for _, v := range n.versions {
		orphaned = append(orphaned, v.meta.ContentID)
	}
	d.detach(name)
	return orphaned, nil
}

// DeleteVersion removes one version; the newest remaining becomes current.
func (d *Directory) DeleteVersion(ctx context.Context, name, versionToken string, identity *auth.Identity) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	n, ancestors, err := d.lookup(name)
	if err != nil {
		return err
	}
	if n.typ != directory.TypeObject {
		return directory.NewNotFound(name + ":" + versionToken)
	}
	v, ok := n.versions[versionToken]
	if !ok {
		return directory.NewNotFound(name + ":" + versionToken)
	}
	if err := directory.Enforce(identity, name+":"+versionToken, v.acls, append(ancestors, n.acls), "owner"); err != nil {
		return err
	}

	delete(n.versions, versionToken)
	for i, token := range n.history {
		if token == versionToken {
			n.history = append(n.history[:i], n.history[i+1:]...)
			break
		}
	}
	if n.current == versionToken {
		n.current = ""
		if len(n.history) > 0 {
			n.current = n.history[len(n.history)-1]
		}
	}
	return nil
}

// objectForWrite resolves (or creates) the object behind a version or
// upload write, enforcing "write" on existing objects and "create" on the
// parent namespace for new ones. Callers must hold the write lock.
func (d *Directory) objectForWrite(name string, identity *auth.Identity) (*node, error) {
	if !directory.ValidName(name) || name == "/" {
		return nil, directory.NewBadRequest("malformed resource name")
	}

	n, ancestors, err := d.lookup(name)
	if err == nil {
		if n.typ != directory.TypeObject {
			return nil, directory.NewConflict("name is a namespace", name)
		}
		if err := directory.Enforce(identity, name, n.acls, ancestors, "write", "owner"); err != nil {
			return nil, err
		}
		return n, nil
	}

	parent, parentAncestors, perr := d.lookup(parentName(name))
	if perr != nil {
		return nil, directory.NewNotFound(name)
	}
	if parent.typ != directory.TypeNamespace {
		return nil, directory.NewConflict("parent is not a namespace", name)
	}
	if err := directory.Enforce(identity, parent.name, parent.acls, parentAncestors, "create", "owner"); err != nil {
		return nil, err
	}

	obj := newObjectNode(name, identity)
	parent.children[lastSegment(name)] = obj
	return obj, nil
}

// appendVersion adds a version to an object and makes it current.
func (n *node) appendVersion(meta directory.VersionMeta, identity *auth.Identity) *version {
	v := &version{
		token:     uuid.NewString(),
		meta:      meta,
		acls:      directory.NewACLs(directory.TypeVersion, identity),
		createdAt: time.Now(),
	}
	n.versions[v.token] = v
	n.history = append(n.history, v.token)
	n.current = v.token
	return v
}

// detach unlinks a node from its parent. Callers must hold the write lock
// and have validated that the node exists.
func (d *Directory) detach(name string) {
	parent, _, err := d.lookup(parentName(name))
	if err != nil {
		return
	}
	for segment, child := range parent.children {
		if child.name == name {
			delete(parent.children, segment)
			return
		}
	}
}
