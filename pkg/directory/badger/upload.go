package badger

import (
	"bytes"
	"context"
	"time"

	badger "github.com/dgraph-io/badger/v4"
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

	var out *directory.Upload
	err := d.db.Update(func(txn *badger.Txn) error {
		rec, err := objectForWrite(txn, name, identity)
		if err != nil {
			return err
		}
		// persist the object record in case it was just created
		if err := putJSON(txn, resourceKey(name), rec); err != nil {
			return err
		}

		job := uuid.NewString()
		urec := uploadRecord{
			NBytes:      spec.NBytes,
			ChunkBytes:  spec.ChunkBytes,
			ContentType: spec.ContentType,
			ContentMD5:  spec.ContentMD5,
			ContentID:   uuid.NewString(),
			ACLs:        wireACLs(directory.NewACLs(directory.TypeUpload, identity)),
			CreatedAt:   time.Now(),
		}
		if err := putJSON(txn, uploadKey(name, job), &urec); err != nil {
			return err
		}
		out = urec.upload(name, job)
		return nil
	})
	return out, err
}

// loadUpload resolves an upload job and enforces ownership. The ancestor
// chain for the check includes the owning object.
func loadUpload(txn *badger.Txn, name, job string, identity *auth.Identity) (*uploadRecord, *resourceRecord, error) {
	rec, ancestors, err := walk(txn, name)
	if err != nil {
		return nil, nil, err
	}
	if rec.Type != directory.TypeObject {
		return nil, nil, directory.NewNotFound(name + ";upload/" + job)
	}

	var urec uploadRecord
	found, err := getJSON(txn, uploadKey(name, job), &urec)
	if err != nil {
		return nil, nil, err
	}
	if !found {
		return nil, nil, directory.NewNotFound(name + ";upload/" + job)
	}

	chain := append(ancestors, modelACLs(rec.ACLs))
	if err := directory.Enforce(identity, name+";upload/"+job, modelACLs(urec.ACLs), chain, "owner"); err != nil {
		return nil, nil, err
	}
	return &urec, rec, nil
}

// UploadResolve resolves a job identifier on the named object.
func (d *Directory) UploadResolve(ctx context.Context, name, job string, identity *auth.Identity) (*directory.Upload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	var out *directory.Upload
	err := d.db.View(func(txn *badger.Txn) error {
		urec, _, err := loadUpload(txn, name, job, identity)
		if err != nil {
			return err
		}
		out = urec.upload(name, job)
		return nil
	})
	return out, err
}

// NoteChunk records a staged chunk index for a job. Re-sends are no-ops.
func (d *Directory) NoteChunk(ctx context.Context, name, job string, chunk int64, identity *auth.Identity) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	return d.db.Update(func(txn *badger.Txn) error {
		urec, _, err := loadUpload(txn, name, job, identity)
		if err != nil {
			return err
		}
		if chunk < 0 || chunk >= urec.spec().ChunkCount() {
			return directory.NewConflict("chunk beyond declared upload length", name+";upload/"+job)
		}
		if urec.hasChunk(chunk) {
			return nil
		}
		urec.Chunks = append(urec.Chunks, chunk)
		return putJSON(txn, uploadKey(name, job), urec)
	})
}

// FinishUpload turns a completed job into a new version of its object.
func (d *Directory) FinishUpload(ctx context.Context, name, job string, nbytes int64, contentMD5 []byte, identity *auth.Identity) (*directory.Resource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	var res *directory.Resource
	err := d.db.Update(func(txn *badger.Txn) error {
		urec, rec, err := loadUpload(txn, name, job, identity)
		if err != nil {
			return err
		}
		if !urec.complete() || nbytes != urec.NBytes {
			return directory.NewConflict("upload incomplete", name+";upload/"+job)
		}
		if len(urec.ContentMD5) > 0 && len(contentMD5) > 0 && !bytes.Equal(urec.ContentMD5, contentMD5) {
			return directory.NewConflict("content digest mismatch", name+";upload/"+job)
		}

		digest := contentMD5
		if len(digest) == 0 {
			digest = urec.ContentMD5
		}

		token := uuid.NewString()
		vrec := versionRecord{
			NBytes:      nbytes,
			ContentType: urec.ContentType,
			ContentMD5:  digest,
			ContentID:   urec.ContentID,
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
		if err := txn.Delete(uploadKey(name, job)); err != nil {
			return err
		}
		res = vrec.resource(name, token)
		return nil
	})
	return res, err
}

// CancelUpload discards a job.
func (d *Directory) CancelUpload(ctx context.Context, name, job string, identity *auth.Identity) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	return d.db.Update(func(txn *badger.Txn) error {
		if _, _, err := loadUpload(txn, name, job, identity); err != nil {
			return err
		}
		return txn.Delete(uploadKey(name, job))
	})
}
