// Package directory defines the resource model of DittoStore: a hierarchy
// of namespaces containing versioned objects, every resource carrying an
// access-control list, plus chunked upload jobs attached to objects.
//
// The Directory service maps canonical slash-rooted names to resources. It
// is constructed once at startup, injected into the REST front door, and
// shared by every request; implementations are internally synchronized.
//
// Separation of concerns: the directory owns metadata only. Payload bytes
// live in a content store (pkg/content) and are referenced from version
// resources by ContentID. Authorization is enforced inside the directory so
// that every caller, present and future, goes through the same checks.
package directory

import (
	"context"

	"github.com/marmos91/dittostore/pkg/auth"
)

// Directory is the process-wide name-to-resource service.
//
// Error contract: every method returns either nil or a *Error whose Code is
// drawn from the closed taxonomy in errors.go; the REST layer relies on
// this for its status translation. Infrastructure failures (storage engine
// errors) are wrapped into CodeConflict or surfaced as plain errors, which
// the REST layer reports as internal errors.
//
// Thread safety: all methods are safe for concurrent use.
type Directory interface {
	// NameResolve looks up a canonical name ("/" is the root namespace).
	// Objects resolve whether or not they have a current version.
	NameResolve(ctx context.Context, name string) (*Resource, error)

	// VersionResolve resolves an explicit version token against an
	// object's history. NotFound if the object or the token is absent.
	VersionResolve(ctx context.Context, name, version string) (*Resource, error)

	// CurrentVersion resolves an object to its current version. Conflict
	// if the object exists but has no current version.
	CurrentVersion(ctx context.Context, name string) (*Resource, error)

	// List returns the canonical names of a namespace's direct children,
	// sorted. NotFound if the name is not a namespace. Requires read
	// access (ownership, since namespaces declare no "read" category).
	List(ctx context.Context, name string, identity *auth.Identity) ([]string, error)

	// CreateNamespace creates an empty namespace under an existing parent
	// namespace. Requires "create" on the parent. Conflict if the name is
	// already in use.
	CreateNamespace(ctx context.Context, name string, identity *auth.Identity) (*Resource, error)

	// DeleteNamespace removes an empty namespace. Requires "owner".
	// Conflict if the namespace has children or is the root.
	DeleteNamespace(ctx context.Context, name string, identity *auth.Identity) error

	// CreateVersion records a new immutable version under the named
	// object, creating the object on first write ("create" on the parent
	// namespace; "write" on the object afterwards). The new version
	// becomes current.
	CreateVersion(ctx context.Context, name string, meta VersionMeta, identity *auth.Identity) (*Resource, error)

	// DeleteObject removes an object and its whole version history. It
	// returns the content IDs of the removed versions so the caller can
	// release their payloads. Requires "owner" on the object.
	DeleteObject(ctx context.Context, name string, identity *auth.Identity) ([]string, error)

	// DeleteVersion removes one version from an object's history. If it
	// was current, the newest remaining version becomes current. Requires
	// "owner" on the version or object.
	DeleteVersion(ctx context.Context, name, version string, identity *auth.Identity) error

	// EnforceRead checks that the identity may read the resource's
	// content ("read" on the resource, or ownership).
	EnforceRead(ctx context.Context, res *Resource, identity *auth.Identity) error

	// GetACLs returns the full ACL mapping of a resource: every declared
	// category with its current role set. Requires "owner".
	GetACLs(ctx context.Context, res *Resource, identity *auth.Identity) (ACLs, error)

	// GetACL returns one category's role set. NotFound if the resource
	// type does not declare the category. Requires "owner".
	GetACL(ctx context.Context, res *Resource, access string, identity *auth.Identity) (RoleSet, error)

	// CheckACLRole succeeds iff role is a member of the category.
	// Requires "owner".
	CheckACLRole(ctx context.Context, res *Resource, access, role string, identity *auth.Identity) error

	// SetACLRole adds one role to a category. Idempotent: adding a
	// present role succeeds with no change. Requires "owner".
	SetACLRole(ctx context.Context, res *Resource, access, role string, identity *auth.Identity) error

	// DropACLRole removes one role from a category. NotFound if the role
	// was not a member. Requires "owner".
	DropACLRole(ctx context.Context, res *Resource, access, role string, identity *auth.Identity) error

	// SetACL replaces a category wholesale. Atomic: on any failure the
	// previous role set is untouched. Requires "owner".
	SetACL(ctx context.Context, res *Resource, access string, roles []string, identity *auth.Identity) error

	// ClearACL resets a category to the empty set. Requires "owner".
	ClearACL(ctx context.Context, res *Resource, access string, identity *auth.Identity) error

	// CreateUpload opens a chunked upload job on the named object,
	// creating the object on first write. Same authorization as
	// CreateVersion. The job's ContentID identifies the staging payload.
	CreateUpload(ctx context.Context, name string, spec UploadSpec, identity *auth.Identity) (*Upload, error)

	// UploadResolve resolves a job identifier on the named object.
	// NotFound if the object or job is absent. Requires "owner" on the
	// job.
	UploadResolve(ctx context.Context, name, job string, identity *auth.Identity) (*Upload, error)

	// NoteChunk records that the given chunk index was staged for the
	// job. Re-sending an index is a no-op; an index outside the declared
	// length is a Conflict. Requires "owner" on the job.
	NoteChunk(ctx context.Context, name, job string, chunk int64, identity *auth.Identity) error

	// FinishUpload turns a completed job into a new version of its
	// object, verifying that every declared chunk was staged and that the
	// byte count (and digest, when the spec carried one) matches the job
	// spec. Conflict on any mismatch or missing chunk. The job is
	// consumed. Requires "owner" on the job.
	FinishUpload(ctx context.Context, name, job string, nbytes int64, contentMD5 []byte, identity *auth.Identity) (*Resource, error)

	// CancelUpload discards a job. Requires "owner" on the job.
	CancelUpload(ctx context.Context, name, job string, identity *auth.Identity) error

	// ContentIDs returns every content ID any version or upload job
	// currently references. The garbage collector treats payloads outside
	// this set as orphaned.
	ContentIDs(ctx context.Context) ([]string, error)
}
