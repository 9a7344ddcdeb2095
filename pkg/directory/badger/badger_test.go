package badger

import (
	"context"
	"testing"

	"github.com/marmos91/dittostore/pkg/auth"
	"github.com/marmos91/dittostore/pkg/directory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	admin = &auth.Identity{Client: "admin"}
	other = &auth.Identity{Client: "other"}
)

func newDirectory(t *testing.T) *Directory {
	t.Helper()
	d, err := New(context.Background(), Config{InMemory: true, Owner: []string{"admin"}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func requireCode(t *testing.T, err error, code directory.ErrorCode) {
	t.Helper()
	var derr *directory.Error
	require.ErrorAs(t, err, &derr)
	require.Equal(t, code, derr.Code)
}

func TestNamespaceTree(t *testing.T) {
	d := newDirectory(t)
	ctx := context.Background()

	_, err := d.CreateNamespace(ctx, "/a", admin)
	require.NoError(t, err)
	_, err = d.CreateNamespace(ctx, "/a/b", admin)
	require.NoError(t, err)

	res, err := d.NameResolve(ctx, "/a/b")
	require.NoError(t, err)
	assert.Equal(t, directory.TypeNamespace, res.Type)

	_, err = d.NameResolve(ctx, "/a/missing")
	requireCode(t, err, directory.CodeNotFound)
	_, err = d.CreateNamespace(ctx, "/x/y", admin)
	requireCode(t, err, directory.CodeNotFound)
	_, err = d.CreateNamespace(ctx, "/a", admin)
	requireCode(t, err, directory.CodeConflict)

	requireCode(t, d.DeleteNamespace(ctx, "/a", admin), directory.CodeConflict)
	require.NoError(t, d.DeleteNamespace(ctx, "/a/b", admin))
	require.NoError(t, d.DeleteNamespace(ctx, "/a", admin))
}

func TestList(t *testing.T) {
	d := newDirectory(t)
	ctx := context.Background()

	_, err := d.CreateNamespace(ctx, "/b", admin)
	require.NoError(t, err)
	_, err = d.CreateNamespace(ctx, "/a", admin)
	require.NoError(t, err)
	_, err = d.CreateNamespace(ctx, "/a/deep", admin)
	require.NoError(t, err)
	_, err = d.CreateVersion(ctx, "/a/obj", directory.VersionMeta{ContentID: "c1"}, admin)
	require.NoError(t, err)

	// direct children only, sorted
	names, err := d.List(ctx, "/", admin)
	require.NoError(t, err)
	assert.Equal(t, []string{"/a", "/b"}, names)

	names, err = d.List(ctx, "/a", admin)
	require.NoError(t, err)
	assert.Equal(t, []string{"/a/deep", "/a/obj"}, names)

	_, err = d.List(ctx, "/a/obj", admin)
	requireCode(t, err, directory.CodeNotFound)
	_, err = d.List(ctx, "/a", other)
	requireCode(t, err, directory.CodeForbidden)
}

func TestVersionHistory(t *testing.T) {
	d := newDirectory(t)
	ctx := context.Background()

	v1, err := d.CreateVersion(ctx, "/obj", directory.VersionMeta{NBytes: 2, ContentID: "c1"}, admin)
	require.NoError(t, err)
	v2, err := d.CreateVersion(ctx, "/obj", directory.VersionMeta{NBytes: 3, ContentID: "c2"}, admin)
	require.NoError(t, err)

	cur, err := d.CurrentVersion(ctx, "/obj")
	require.NoError(t, err)
	assert.Equal(t, v2.Version, cur.Version)

	res, err := d.VersionResolve(ctx, "/obj", v1.Version)
	require.NoError(t, err)
	assert.Equal(t, "c1", res.ContentID)

	require.NoError(t, d.DeleteVersion(ctx, "/obj", v2.Version, admin))
	cur, err = d.CurrentVersion(ctx, "/obj")
	require.NoError(t, err)
	assert.Equal(t, v1.Version, cur.Version)

	orphaned, err := d.DeleteObject(ctx, "/obj", admin)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"c1"}, orphaned)

	_, err = d.NameResolve(ctx, "/obj")
	requireCode(t, err, directory.CodeNotFound)
}

func TestACLOperations(t *testing.T) {
	d := newDirectory(t)
	ctx := context.Background()

	_, err := d.CreateVersion(ctx, "/obj", directory.VersionMeta{ContentID: "c1"}, admin)
	require.NoError(t, err)
	obj, err := d.NameResolve(ctx, "/obj")
	require.NoError(t, err)

	require.NoError(t, d.SetACL(ctx, obj, "read", []string{"bob", "alice"}, admin))
	set, err := d.GetACL(ctx, obj, "read", admin)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, set.Roles())

	require.NoError(t, d.SetACLRole(ctx, obj, "read", "carol", admin))
	require.NoError(t, d.CheckACLRole(ctx, obj, "read", "carol", admin))
	require.NoError(t, d.DropACLRole(ctx, obj, "read", "carol", admin))
	requireCode(t, d.DropACLRole(ctx, obj, "read", "carol", admin), directory.CodeNotFound)

	require.NoError(t, d.ClearACL(ctx, obj, "read", admin))
	set, err = d.GetACL(ctx, obj, "read", admin)
	require.NoError(t, err)
	assert.Empty(t, set.Roles())

	_, err = d.GetACL(ctx, obj, "create", admin)
	requireCode(t, err, directory.CodeNotFound)
	_, err = d.GetACLs(ctx, obj, other)
	requireCode(t, err, directory.CodeForbidden)
}

func TestUploadJobs(t *testing.T) {
	d := newDirectory(t)
	ctx := context.Background()
	spec := directory.UploadSpec{NBytes: 8, ChunkBytes: 4}

	u, err := d.CreateUpload(ctx, "/obj", spec, admin)
	require.NoError(t, err)

	require.NoError(t, d.NoteChunk(ctx, "/obj", u.Job, 0, admin))
	requireCode(t, d.NoteChunk(ctx, "/obj", u.Job, 2, admin), directory.CodeConflict)

	// finishing with a chunk still missing is a conflict
	_, err = d.FinishUpload(ctx, "/obj", u.Job, 8, nil, admin)
	requireCode(t, err, directory.CodeConflict)

	require.NoError(t, d.NoteChunk(ctx, "/obj", u.Job, 1, admin))
	// a re-sent chunk does not double-count
	require.NoError(t, d.NoteChunk(ctx, "/obj", u.Job, 1, admin))

	got, err := d.UploadResolve(ctx, "/obj", u.Job, admin)
	require.NoError(t, err)
	assert.Equal(t, int64(8), got.BytesReceived)

	_, err = d.FinishUpload(ctx, "/obj", u.Job, 5, nil, admin)
	requireCode(t, err, directory.CodeConflict)

	res, err := d.FinishUpload(ctx, "/obj", u.Job, 8, nil, admin)
	require.NoError(t, err)
	assert.Equal(t, u.ContentID, res.ContentID)

	_, err = d.UploadResolve(ctx, "/obj", u.Job, admin)
	requireCode(t, err, directory.CodeNotFound)
}

func TestContentIDs(t *testing.T) {
	d := newDirectory(t)
	ctx := context.Background()

	_, err := d.CreateVersion(ctx, "/obj", directory.VersionMeta{ContentID: "c1"}, admin)
	require.NoError(t, err)
	u, err := d.CreateUpload(ctx, "/obj", directory.UploadSpec{NBytes: 4, ChunkBytes: 4}, admin)
	require.NoError(t, err)

	ids, err := d.ContentIDs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"c1", u.ContentID}, ids)
}

func TestPersistenceAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := t.TempDir()

	d, err := New(ctx, Config{Path: path, Owner: []string{"admin"}})
	require.NoError(t, err)
	v, err := d.CreateVersion(ctx, "/obj", directory.VersionMeta{NBytes: 4, ContentID: "c1"}, admin)
	require.NoError(t, err)
	require.NoError(t, d.Close())

	d, err = New(ctx, Config{Path: path, Owner: []string{"someone-else"}})
	require.NoError(t, err)
	defer d.Close()

	cur, err := d.CurrentVersion(ctx, "/obj")
	require.NoError(t, err)
	assert.Equal(t, v.Version, cur.Version)
	assert.Equal(t, "c1", cur.ContentID)

	// bootstrap must not overwrite an existing root
	root, err := d.GetACLs(ctx, mustResolve(t, d, "/"), admin)
	require.NoError(t, err)
	assert.Equal(t, []string{"admin"}, root["owner"].Roles())
}

func mustResolve(t *testing.T, d *Directory, name string) *directory.Resource {
	t.Helper()
	res, err := d.NameResolve(context.Background(), name)
	require.NoError(t, err)
	return res
}
