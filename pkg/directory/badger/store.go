// Package badger implements the directory service on BadgerDB, giving the
// namespace tree, version histories, ACLs, and upload jobs durability
// across restarts.
package badger

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/marmos91/dittostore/internal/logger"
	"github.com/marmos91/dittostore/pkg/auth"
	"github.com/marmos91/dittostore/pkg/directory"
)

// Key schema. Canonical names never contain ':' (excluded by the address
// grammar), so ':' separates the name from version tokens and job IDs
// without ambiguity:
//
//	r:<name>          resource record (namespace or object)
//	v:<name>:<token>  version record
//	u:<name>:<job>    upload job record
const (
	resourcePrefix = "r:"
	versionPrefix  = "v:"
	uploadPrefix   = "u:"
)

// Config controls the badger directory.
type Config struct {
	// Path is the database directory on disk. Required unless InMemory.
	Path string

	// InMemory runs badger without disk persistence (tests).
	InMemory bool

	// Owner seeds the root namespace's "owner" and "create" categories on
	// first startup. Empty means the wildcard role (development only).
	Owner []string
}

// Directory is the persistent directory service.
//
// Thread safety: a single RWMutex serializes mutations; reads share the
// read lock and run in read-only transactions. Badger provides crash
// consistency per transaction, the mutex provides the read-modify-write
// atomicity the record schema needs.
type Directory struct {
	mu sync.RWMutex
	db *badger.DB
}

// New opens (or creates) the database and bootstraps the root namespace on
// first use.
func New(ctx context.Context, cfg Config) (*Directory, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, fmt.Errorf("badger directory: path is required")
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	d := &Directory{db: db}
	if err := d.bootstrap(cfg.Owner); err != nil {
		_ = db.Close()
		return nil, err
	}
	return d, nil
}

// Close releases the database.
func (d *Directory) Close() error {
	return d.db.Close()
}

// bootstrap creates the root namespace record if the database is empty.
func (d *Directory) bootstrap(owner []string) error {
	if len(owner) == 0 {
		owner = []string{directory.AnyRole}
	}

	return d.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(resourcePrefix + "/"))
		if err == nil {
			return nil
		}
		if err != badger.ErrKeyNotFound {
			return err
		}

		logger.Info("Initializing directory database, root owner roles: %v", owner)
		root := resourceRecord{
			Type:      directory.TypeNamespace,
			ACLs:      wireACLs(directory.NewACLs(directory.TypeNamespace, &auth.Identity{})),
			CreatedAt: time.Now(),
		}
		root.ACLs["owner"] = owner
		root.ACLs["create"] = owner
		return putJSON(txn, resourceKey("/"), &root)
	})
}

// resourceRecord persists one namespace or object.
type resourceRecord struct {
	Type      directory.ResourceType `json:"type"`
	ACLs      map[string][]string    `json:"acls"`
	Current   string                 `json:"current,omitempty"`
	History   []string               `json:"history,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// versionRecord persists one immutable version.
type versionRecord struct {
	NBytes      int64               `json:"nbytes"`
	ContentType string              `json:"content_type,omitempty"`
	ContentMD5  []byte              `json:"content_md5,omitempty"`
	ContentID   string              `json:"content_id"`
	ACLs        map[string][]string `json:"acls"`
	CreatedAt   time.Time           `json:"created_at"`
}

// uploadRecord persists one in-progress upload job. Chunks lists the staged
// chunk indices; progress and completeness derive from it.
type uploadRecord struct {
	NBytes      int64               `json:"nbytes"`
	ChunkBytes  int64               `json:"chunk_bytes"`
	ContentType string              `json:"content_type,omitempty"`
	ContentMD5  []byte              `json:"content_md5,omitempty"`
	ContentID   string              `json:"content_id"`
	Chunks      []int64             `json:"chunks,omitempty"`
	ACLs        map[string][]string `json:"acls"`
	CreatedAt   time.Time           `json:"created_at"`
}

func (rec *uploadRecord) spec() directory.UploadSpec {
	return directory.UploadSpec{
		NBytes:      rec.NBytes,
		ChunkBytes:  rec.ChunkBytes,
		ContentType: rec.ContentType,
		ContentMD5:  append([]byte(nil), rec.ContentMD5...),
	}
}

func (rec *uploadRecord) hasChunk(chunk int64) bool {
	for _, c := range rec.Chunks {
		if c == chunk {
			return true
		}
	}
	return false
}

// complete reports whether every declared chunk was staged.
func (rec *uploadRecord) complete() bool {
	return int64(len(rec.Chunks)) == rec.spec().ChunkCount()
}

func resourceKey(name string) []byte {
	return []byte(resourcePrefix + name)
}

func versionKey(name, token string) []byte {
	return []byte(versionPrefix + name + ":" + token)
}

func uploadKey(name, job string) []byte {
	return []byte(uploadPrefix + name + ":" + job)
}

// getJSON loads and decodes a record. Returns false if the key is absent.
func getJSON(txn *badger.Txn, key []byte, out any) (bool, error) {
	item, err := txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, out)
	})
	if err != nil {
		return false, fmt.Errorf("failed to decode record %q: %w", key, err)
	}
	return true, nil
}

func putJSON(txn *badger.Txn, key []byte, rec any) error {
	buf, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode record %q: %w", key, err)
	}
	return txn.Set(key, buf)
}

func wireACLs(acls directory.ACLs) map[string][]string {
	out := make(map[string][]string, len(acls))
	for access, set := range acls {
		out[access] = set.Roles()
	}
	return out
}

func modelACLs(wire map[string][]string) directory.ACLs {
	out := make(directory.ACLs, len(wire))
	for access, roles := range wire {
		out[access] = directory.NewRoleSet(roles...)
	}
	return out
}

// walk verifies every ancestor of a canonical name is an existing namespace
// and returns their ACLs outermost first, followed by the target's record.
// The target record is nil (with a NotFound error) when absent.
func walk(txn *badger.Txn, name string) (*resourceRecord, []directory.ACLs, error) {
	if !directory.ValidName(name) {
		return nil, nil, directory.NewBadRequest("malformed resource name")
	}

	var ancestors []directory.ACLs
	if name != "/" {
		prefix := "/"
		segments := strings.Split(name[1:], "/")
		for i := 0; i < len(segments)-1; i++ {
			var rec resourceRecord
			found, err := getJSON(txn, resourceKey(prefix), &rec)
			if err != nil {
				return nil, nil, err
			}
			if !found || rec.Type != directory.TypeNamespace {
				return nil, nil, directory.NewNotFound(name)
			}
			ancestors = append(ancestors, modelACLs(rec.ACLs))
			if prefix == "/" {
				prefix += segments[i]
			} else {
				prefix += "/" + segments[i]
			}
		}
		// the immediate parent
		var rec resourceRecord
		found, err := getJSON(txn, resourceKey(prefix), &rec)
		if err != nil {
			return nil, nil, err
		}
		if !found || rec.Type != directory.TypeNamespace {
			return nil, nil, directory.NewNotFound(name)
		}
		ancestors = append(ancestors, modelACLs(rec.ACLs))
	}

	var rec resourceRecord
	found, err := getJSON(txn, resourceKey(name), &rec)
	if err != nil {
		return nil, nil, err
	}
	if !found {
		return nil, ancestors, directory.NewNotFound(name)
	}
	return &rec, ancestors, nil
}

// hasChildren reports whether any resource record lives directly or
// transitively under the namespace.
func hasChildren(txn *badger.Txn, name string) bool {
	prefix := resourcePrefix + name + "/"
	if name == "/" {
		prefix = resourcePrefix + "/"
	}
	rootKey := resourceKey("/")

	it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(prefix)})
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		if string(it.Item().Key()) == string(rootKey) {
			continue
		}
		return true
	}
	return false
}

// listChildren returns the canonical names of the namespace's direct
// children, unsorted. Deeper descendants share the prefix but contain a
// further '/' and are skipped.
func listChildren(txn *badger.Txn, name string) []string {
	prefix := resourcePrefix + name + "/"
	if name == "/" {
		prefix = resourcePrefix + "/"
	}
	rootKey := string(resourceKey("/"))

	var names []string
	it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(prefix)})
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		key := string(it.Item().Key())
		if key == rootKey {
			continue
		}
		if strings.ContainsRune(key[len(prefix):], '/') {
			continue
		}
		names = append(names, key[len(resourcePrefix):])
	}
	return names
}

func (rec *resourceRecord) resource(name string) *directory.Resource {
	return &directory.Resource{
		Name:      name,
		Type:      rec.Type,
		CreatedAt: rec.CreatedAt,
	}
}

func (rec *versionRecord) resource(name, token string) *directory.Resource {
	return &directory.Resource{
		Name:        name,
		Type:        directory.TypeVersion,
		Version:     token,
		NBytes:      rec.NBytes,
		ContentType: rec.ContentType,
		ContentMD5:  append([]byte(nil), rec.ContentMD5...),
		ContentID:   rec.ContentID,
		CreatedAt:   rec.CreatedAt,
	}
}

func (rec *uploadRecord) upload(name, job string) *directory.Upload {
	spec := rec.spec()

	var received int64
	for _, chunk := range rec.Chunks {
		received += spec.ChunkSize(chunk)
	}

	return &directory.Upload{
		Job:           job,
		Name:          name,
		Spec:          spec,
		ContentID:     rec.ContentID,
		BytesReceived: received,
		CreatedAt:     rec.CreatedAt,
	}
}
