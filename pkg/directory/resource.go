package directory

import (
	"strings"
	"time"
)

// ResourceType identifies the variant of an addressable resource.
type ResourceType int

const (
	// TypeNamespace is a hierarchical container of child resources
	TypeNamespace ResourceType = iota

	// TypeObject is a named storage unit with an ordered version history
	// and a current-version pointer
	TypeObject

	// TypeVersion is one immutable snapshot of an object's data
	TypeVersion

	// TypeUpload is an in-progress chunked upload job attached to an object
	TypeUpload
)

func (t ResourceType) String() string {
	switch t {
	case TypeNamespace:
		return "namespace"
	case TypeObject:
		return "object"
	case TypeVersion:
		return "version"
	case TypeUpload:
		return "upload"
	default:
		return "unknown"
	}
}

// Resource is a resolved handle to an addressable entity.
//
// It is a snapshot: handlers read it, they never mutate it. All mutation
// goes through Directory operations, which re-resolve by address, so a stale
// snapshot can at worst produce a NotFound.
type Resource struct {
	// Name is the canonical slash-rooted address ("/" for the root namespace)
	Name string

	// Type is the resource variant
	Type ResourceType

	// Version is the version token; set only for TypeVersion
	Version string

	// NBytes is the payload length; meaningful only for versions
	NBytes int64

	// ContentType is the payload media type recorded at creation ("" if unknown)
	ContentType string

	// ContentMD5 is the raw MD5 digest of the payload (nil if unknown)
	ContentMD5 []byte

	// ContentID locates the payload bytes in the content store
	ContentID string

	// CreatedAt is the creation time of the resource
	CreatedAt time.Time
}

// String returns the resource's address, including the version token for
// version resources.
func (r *Resource) String() string {
	if r.Version != "" {
		return r.Name + ":" + r.Version
	}
	return r.Name
}

// IsObject reports whether the handle refers to a live object (no explicit
// version). The range engine resolves such handles to their current version
// before computing response framing.
func (r *Resource) IsObject() bool {
	return r.Type == TypeObject
}

// VersionMeta describes a new version to be recorded under an object.
type VersionMeta struct {
	// NBytes is the payload length as stored
	NBytes int64

	// ContentType is the media type supplied by the client ("" if none)
	ContentType string

	// ContentMD5 is the raw digest of the stored bytes (nil if unknown)
	ContentMD5 []byte

	// ContentID locates the payload in the content store
	ContentID string
}

// ValidName checks a canonical address: slash-rooted, no empty interior
// segments, and no segment containing the reserved characters ":" or ";"
// (they delimit version tokens and sub-resource suffixes in the address
// grammar).
func ValidName(name string) bool {
	if name == "/" {
		return true
	}
	if !strings.HasPrefix(name, "/") || strings.HasSuffix(name, "/") {
		return false
	}
	for _, segment := range strings.Split(name[1:], "/") {
		if segment == "" || strings.ContainsAny(segment, ":;") {
			return false
		}
	}
	return true
}
