package session

import (
	"fmt"
	"net/http"
	"time"

	"nots/idgen"
	"nots/store"
)

// Manager ties session cookies to stored identity documents.
type Manager struct {
	Secret []byte
	Store  *store.Store
	Expiry time.Duration

	newID idgen.Generator
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithSessionIDGenerator sets a custom generator for session IDs.
func WithSessionIDGenerator(gen idgen.Generator) ManagerOption {
	return func(m *Manager) { m.newID = gen }
}

// NewManager creates a session manager over the given store.
func NewManager(secret []byte, st *store.Store, opts ...ManagerOption) *Manager {
	m := &Manager{
		Secret: secret,
		Store:  st,
		Expiry: 30 * 24 * time.Hour,
		newID:  idgen.Prefixed("ses_", idgen.Default),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Ensure returns the request's session ID, issuing and persisting a
// fresh identity when the client has none. A new cookie is set on
// issue.
func (m *Manager) Ensure(w http.ResponseWriter, r *http.Request) (string, error) {
	if id := FromContext(r.Context()); id != "" {
		return id, nil
	}
	id := m.newID()
	if err := m.Store.UpsertUserInfo(r.Context(), id, map[string]any{}); err != nil {
		return "", fmt.Errorf("session: persist identity: %w", err)
	}
	if err := m.issue(w, r, id); err != nil {
		return "", err
	}
	return id, nil
}

// Login merges client-supplied profile data into the identity document.
// An existing session keeps its ID; a new one is issued otherwise. The
// merged profile is returned.
func (m *Manager) Login(w http.ResponseWriter, r *http.Request, profile map[string]any) (string, map[string]any, error) {
	id := FromContext(r.Context())
	if id == "" {
		id = m.newID()
		if err := m.issue(w, r, id); err != nil {
			return "", nil, err
		}
	}
	if err := m.Store.UpsertUserInfo(r.Context(), id, profile); err != nil {
		return "", nil, fmt.Errorf("session: login: %w", err)
	}
	merged, err := m.Store.GetUserInfo(r.Context(), id)
	if err != nil {
		return "", nil, fmt.Errorf("session: login: %w", err)
	}
	return id, merged, nil
}

// Logout clears the session cookie. The identity document is kept;
// this system never deletes identities.
func (m *Manager) Logout(w http.ResponseWriter) {
	ClearCookie(w)
}

func (m *Manager) issue(w http.ResponseWriter, r *http.Request, id string) error {
	token, err := GenerateToken(m.Secret, id, m.Expiry)
	if err != nil {
		return fmt.Errorf("session: sign: %w", err)
	}
	SetCookie(w, token, Secure(r))
	return nil
}
