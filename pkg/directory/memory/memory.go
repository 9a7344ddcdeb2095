// Package memory implements the directory service with in-process state.
//
// All metadata lives in a tree of nodes protected by a single RWMutex.
// Suitable for development, tests, and deployments that accept losing
// metadata on restart; production setups persist through the badger
// implementation instead.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/marmos91/dittostore/pkg/auth"
	"github.com/marmos91/dittostore/pkg/directory"
)

// Config controls bootstrap of a fresh directory.
type Config struct {
	// Owner lists the roles seeded into the root namespace's "owner" and
	// "create" categories. When empty the root is open (both categories
	// contain the wildcard role), which is only sensible for development.
	Owner []string
}

// Directory is the in-memory directory service.
//
// Thread safety: a single RWMutex guards the whole tree. Reads take the
// read lock, mutations the write lock. Coarse, but resolution and ACL
// operations are map walks over small structures.
type Directory struct {
	mu   sync.RWMutex
	root *node
}

// node is one namespace or object in the tree.
type node struct {
	name      string
	typ       directory.ResourceType
	acls      directory.ACLs
	createdAt time.Time

	// namespace state
	children map[string]*node

	// object state
	versions map[string]*version
	history  []string // version tokens in creation order
	current  string   // current version token, "" when none
	uploads  map[string]*upload
}

type version struct {
	token     string
	meta      directory.VersionMeta
	acls      directory.ACLs
	createdAt time.Time
}

type upload struct {
	job       string
	spec      directory.UploadSpec
	contentID string
	chunks    map[int64]struct{} // staged chunk indices
	acls      directory.ACLs
	createdAt time.Time
}

// bytesReceived sums the distinct staged chunks.
func (u *upload) bytesReceived() int64 {
	var total int64
	for chunk := range u.chunks {
		total += u.spec.ChunkSize(chunk)
	}
	return total
}

// complete reports whether every declared chunk was staged.
func (u *upload) complete() bool {
	return int64(len(u.chunks)) == u.spec.ChunkCount()
}

// New creates an empty directory containing only the root namespace.
func New(ctx context.Context, cfg Config) (*Directory, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	owner := cfg.Owner
	if len(owner) == 0 {
		owner = []string{directory.AnyRole}
	}

	root := newNamespaceNode("/", &auth.Identity{})
	root.acls["owner"] = directory.NewRoleSet(owner...)
	root.acls["create"] = directory.NewRoleSet(owner...)

	return &Directory{root: root}, nil
}

func newNamespaceNode(name string, identity *auth.Identity) *node {
	return &node{
		name:      name,
		typ:       directory.TypeNamespace,
		acls:      directory.NewACLs(directory.TypeNamespace, identity),
		createdAt: time.Now(),
		children:  make(map[string]*node),
	}
}

func newObjectNode(name string, identity *auth.Identity) *node {
	return &node{
		name:      name,
		typ:       directory.TypeObject,
		acls:      directory.NewACLs(directory.TypeObject, identity),
		createdAt: time.Now(),
		versions:  make(map[string]*version),
		uploads:   make(map[string]*upload),
	}
}

// lookup walks the tree to the node for a canonical name. It returns the
// node together with the ACLs of every strict ancestor namespace, outermost
// first, for ownership checks. Callers must hold the lock.
func (d *Directory) lookup(name string) (*node, []directory.ACLs, error) {
	if !directory.ValidName(name) {
		return nil, nil, directory.NewBadRequest("malformed resource name")
	}
	if name == "/" {
		return d.root, nil, nil
	}

	current := d.root
	ancestors := []directory.ACLs{d.root.acls}

	segments := strings.Split(name[1:], "/")
	for i, segment := range segments {
		if current.typ != directory.TypeNamespace {
			return nil, nil, directory.NewNotFound(name)
		}
		child, ok := current.children[segment]
		if !ok {
			return nil, nil, directory.NewNotFound(name)
		}
		if i == len(segments)-1 {
			return child, ancestors, nil
		}
		ancestors = append(ancestors, child.acls)
		current = child
	}

	// unreachable: the loop always returns on the last segment
	return nil, nil, directory.NewNotFound(name)
}

// parentName returns the canonical name of a name's parent namespace.
func parentName(name string) string {
	idx := strings.LastIndexByte(name, '/')
	if idx <= 0 {
		return "/"
	}
	return name[:idx]
}

// lastSegment returns the final path segment of a canonical name.
func lastSegment(name string) string {
	return name[strings.LastIndexByte(name, '/')+1:]
}

func (n *node) resource() *directory.Resource {
	return &directory.Resource{
		Name:      n.name,
		Type:      n.typ,
		CreatedAt: n.createdAt,
	}
}

func (n *node) versionResource(v *version) *directory.Resource {
	return &directory.Resource{
		Name:        n.name,
		Type:        directory.TypeVersion,
		Version:     v.token,
		NBytes:      v.meta.NBytes,
		ContentType: v.meta.ContentType,
		ContentMD5:  append([]byte(nil), v.meta.ContentMD5...),
		ContentID:   v.meta.ContentID,
		CreatedAt:   v.createdAt,
	}
}

// aclTarget locates the ACL-bearing entity behind a resolved resource
// handle, together with the ancestor ACL chain used for ownership checks.
// For versions and uploads the owning object counts as an ancestor.
// Callers must hold the lock.
func (d *Directory) aclTarget(res *directory.Resource) (directory.ACLs, []directory.ACLs, error) {
	n, ancestors, err := d.lookup(res.Name)
	if err != nil {
		return nil, nil, err
	}

	switch res.Type {
	case directory.TypeNamespace, directory.TypeObject:
		if n.typ != res.Type {
			return nil, nil, directory.NewNotFound(res.String())
		}
		return n.acls, ancestors, nil

	case directory.TypeVersion:
		if n.typ != directory.TypeObject {
			return nil, nil, directory.NewNotFound(res.String())
		}
		v, ok := n.versions[res.Version]
		if !ok {
			return nil, nil, directory.NewNotFound(res.String())
		}
		return v.acls, append(ancestors, n.acls), nil

	default:
		return nil, nil, directory.NewNotFound(res.String())
	}
}
