package memory

import (
	"bytes"
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/dittostore/pkg/auth"
	"github.com/marmos91/dittostore/pkg/directory"
)

// CreateUpload opens a chunked upload job on the named object, creating the
// object on first write.
func (d *Directory) CreateUpload(ctx context.Context, name string, spec directory.UploadSpec, identity *auth.Identity) (*directory.Upload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if spec.NBytes < 0 || spec.ChunkBytes <= 0 {
		return nil, directory.NewBadRequest("upload spec requires nbytes >= 0 and chunk_bytes > 0")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	n, err := d.objectForWrite(name, identity)
	if err != nil {
		return nil, err
	}

	u := &upload{
		job:       uuid.NewString(),
		spec:      spec,
		contentID: uuid.NewString(),
		chunks:    make(map[int64]struct{}),
		acls:      directory.NewACLs(directory.TypeUpload, identity),
		createdAt: time.Now(),
	}
	n.uploads[u.job] = u
	return n.uploadHandle(u), nil
}

// UploadResolve resolves a job identifier on the named object.
func (d *Directory) UploadResolve(ctx context.Context, name, job string, identity *auth.Identity) (*directory.Upload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	n, u, ancestors, err := d.lookupUpload(name, job)
	if err != nil {
		return nil, err
	}
	if err := directory.Enforce(identity, n.name+";upload/"+job, u.acls, ancestors, "owner"); err != nil {
		return nil, err
	}
	return n.uploadHandle(u), nil
}

// NoteChunk records a staged chunk index for a job. Re-sends are no-ops.
func (d *Directory) NoteChunk(ctx context.Context, name, job string, chunk int64, identity *auth.Identity) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	n, u, ancestors, err := d.lookupUpload(name, job)
	if err != nil {
		return err
	}
	if err := directory.Enforce(identity, n.name+";upload/"+job, u.acls, ancestors, "owner"); err != nil {
		return err
	}
	if chunk < 0 || chunk >= u.spec.ChunkCount() {
		return directory.NewConflict("chunk beyond declared upload length", n.name+";upload/"+job)
	}
	u.chunks[chunk] = struct{}{}
	return nil
}

// FinishUpload turns a completed job into a new version of its object.
func (d *Directory) FinishUpload(ctx context.Context, name, job string, nbytes int64, contentMD5 []byte, identity *auth.Identity) (*directory.Resource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	n, u, ancestors, err := d.lookupUpload(name, job)
	if err != nil {
		return nil, err
	}
	if err := directory.Enforce(identity, n.name+";upload/"+job, u.acls, ancestors, "owner"); err != nil {
		return nil, err
	}
	if !u.complete() || nbytes != u.spec.NBytes {
		return nil, directory.NewConflict("upload incomplete", n.name+";upload/"+job)
	}
	if len(u.spec.ContentMD5) > 0 && len(contentMD5) > 0 && !bytes.Equal(u.spec.ContentMD5, contentMD5) {
		return nil, directory.NewConflict("content digest mismatch", n.name+";upload/"+job)
	}

	digest := contentMD5
	if len(digest) == 0 {
		digest = u.spec.ContentMD5
	}

	v := n.appendVersion(directory.VersionMeta{
		NBytes:      nbytes,
		ContentType: u.spec.ContentType,
		ContentMD5:  digest,
		ContentID:   u.contentID,
	}, identity)
	delete(n.uploads, job)
	return n.versionResource(v), nil
}

// CancelUpload discards a job.
func (d *Directory) CancelUpload(ctx context.Context, name, job string, identity *auth.Identity) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	n, u, ancestors, err := d.lookupUpload(name, job)
	if err != nil {
		return err
	}
	if err := directory.Enforce(identity, n.name+";upload/"+job, u.acls, ancestors, "owner"); err != nil {
		return err
	}
	delete(n.uploads, job)
	return nil
}

// lookupUpload resolves an object node and one of its upload jobs. The
// returned ancestor chain includes the object's own ACLs. Callers must hold
// the lock.
func (d *Directory) lookupUpload(name, job string) (*node, *upload, []directory.ACLs, error) {
	n, ancestors, err := d.lookup(name)
	if err != nil {
		return nil, nil, nil, err
	}
	if n.typ != directory.TypeObject {
		return nil, nil, nil, directory.NewNotFound(name + ";upload/" + job)
	}
	u, ok := n.uploads[job]
	if !ok {
		return nil, nil, nil, directory.NewNotFound(name + ";upload/" + job)
	}
	return n, u, append(ancestors, n.acls), nil
}

func (n *node) uploadHandle(u *upload) *directory.Upload {
	return &directory.Upload{
		Job:           u.job,
		Name:          n.name,
		Spec:          u.spec,
		ContentID:     u.contentID,
		BytesReceived: u.bytesReceived(),
		CreatedAt:     u.createdAt,
	}
}
