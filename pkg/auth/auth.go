// Package auth resolves client credentials into identities.
//
// The REST front door calls Authenticate exactly once per request, before
// any resource logic runs, so every handler can assume an identity (possibly
// the anonymous one) is present. The verification algorithm behind a
// Manager is deliberately out of scope here; the package ships two narrow
// implementations (anonymous, static token table) that satisfy the contract.
package auth

import (
	"errors"
	"net/http"
)

// ErrInvalidCredentials is returned by a Manager when credentials were
// presented but could not be verified. The front door maps it to 401.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Identity is a resolved client identity.
//
// Client is the primary identifier (empty for anonymous clients) and
// Attributes carries additional role memberships granted to the client.
// ACL checks treat the client identifier itself as a role.
type Identity struct {
	Client     string
	Attributes []string
}

// Anonymous returns the identity used before authentication resolves and
// for clients that present no credentials.
func Anonymous() *Identity {
	return &Identity{}
}

// IsAnonymous reports whether the identity carries no client identifier.
func (id *Identity) IsAnonymous() bool {
	return id == nil || id.Client == ""
}

// Roles returns every role the identity can act as: the client identifier
// plus all granted attributes. Anonymous identities have no roles.
func (id *Identity) Roles() []string {
	if id == nil {
		return nil
	}

	roles := make([]string, 0, len(id.Attributes)+1)
	if id.Client != "" {
		roles = append(roles, id.Client)
	}
	roles = append(roles, id.Attributes...)
	return roles
}

// Manager resolves the credentials attached to a request into an Identity.
//
// Implementations must treat a request without credentials as anonymous
// (identity with empty Client, nil error) and return ErrInvalidCredentials
// only when credentials are present but wrong.
type Manager interface {
	Authenticate(r *http.Request) (*Identity, error)
}

// AnonymousManager ignores all credentials and resolves every request to
// the anonymous identity. Useful for development and for deployments that
// rely entirely on "*" ACL entries.
type AnonymousManager struct{}

func NewAnonymousManager() *AnonymousManager {
	return &AnonymousManager{}
}

func (m *AnonymousManager) Authenticate(r *http.Request) (*Identity, error) {
	return Anonymous(), nil
}
