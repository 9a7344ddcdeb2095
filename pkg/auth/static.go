package auth

import (
	"net/http"
	"strings"
	"sync"
)

// StaticTokenManager resolves bearer tokens against a fixed table loaded at
// startup (auth.tokens in the configuration file).
//
// Contract:
//   - No Authorization header: the request is anonymous.
//   - "Authorization: Bearer <token>" with a known token: the mapped identity.
//   - Any other Authorization value, or an unknown token: ErrInvalidCredentials.
//
// Thread safety:
// The table is immutable after construction; reads take the RWMutex only to
// keep AddToken (used by tests) safe.
type StaticTokenManager struct {
	mu     sync.RWMutex
	tokens map[string]*Identity
}

// StaticToken is one entry of the token table.
type StaticToken struct {
	Token      string
	Client     string
	Attributes []string
}

// NewStaticTokenManager builds a manager from the supplied token table.
func NewStaticTokenManager(entries []StaticToken) *StaticTokenManager {
	m := &StaticTokenManager{
		tokens: make(map[string]*Identity, len(entries)),
	}
	for _, e := range entries {
		m.tokens[e.Token] = &Identity{
			Client:     e.Client,
			Attributes: e.Attributes,
		}
	}
	return m
}

// AddToken registers one token. Returns false if the token already exists.
func (m *StaticTokenManager) AddToken(entry StaticToken) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.tokens[entry.Token]; exists {
		return false
	}
	m.tokens[entry.Token] = &Identity{
		Client:     entry.Client,
		Attributes: entry.Attributes,
	}
	return true
}

func (m *StaticTokenManager) Authenticate(r *http.Request) (*Identity, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return Anonymous(), nil
	}

	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return nil, ErrInvalidCredentials
	}
	token = strings.TrimSpace(token)

	m.mu.RLock()
	identity, ok := m.tokens[token]
	m.mu.RUnlock()

	if !ok {
		return nil, ErrInvalidCredentials
	}

	// Copy so callers cannot mutate the table through the identity.
	out := &Identity{
		Client:     identity.Client,
		Attributes: append([]string(nil), identity.Attributes...),
	}
	return out, nil
}
