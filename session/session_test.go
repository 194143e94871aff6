package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"nots/store"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func TestTokenRoundTrip(t *testing.T) {
	// WHAT: A signed token parses back to the same session ID.
	// WHY: The cookie is the only carrier of client identity.
	token, err := GenerateToken(testSecret, "ses_42", time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	id, err := ParseToken(testSecret, token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if id != "ses_42" {
		t.Errorf("id: got %q", id)
	}
}

func TestTokenWrongSecret(t *testing.T) {
	// WHAT: Tokens signed with another secret are rejected.
	// WHY: session is server-controlled, so a forged cookie must not parse.
	token, _ := GenerateToken(testSecret, "ses_42", time.Hour)
	other := []byte("ffffffffffffffffffffffffffffffff")
	if _, err := ParseToken(other, token); err == nil {
		t.Error("forged token accepted")
	}
}

func TestWeakSecretRejected(t *testing.T) {
	// WHAT: Short secrets fail at signing time.
	// WHY: Fail at startup, not at the first forged cookie.
	if _, err := GenerateToken([]byte("short"), "ses_1", time.Hour); err != ErrWeakSecret {
		t.Errorf("got %v, want ErrWeakSecret", err)
	}
}

func TestMiddlewareSoftParse(t *testing.T) {
	// WHAT: A valid cookie lands in the context; garbage is ignored.
	// WHY: Parsing is soft: unauthenticated requests still flow.
	var seen string
	h := Middleware(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
	}))

	token, _ := GenerateToken(testSecret, "ses_7", time.Hour)
	r := httptest.NewRequest("GET", "/", nil)
	r.AddCookie(&http.Cookie{Name: CookieName, Value: token})
	h.ServeHTTP(httptest.NewRecorder(), r)
	if seen != "ses_7" {
		t.Errorf("valid cookie: got %q", seen)
	}

	r = httptest.NewRequest("GET", "/", nil)
	r.AddCookie(&http.Cookie{Name: CookieName, Value: "garbage"})
	h.ServeHTTP(httptest.NewRecorder(), r)
	if seen != "" {
		t.Errorf("garbage cookie: got %q, want empty", seen)
	}
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	db := store.OpenMemory(t)
	st := store.New(db)
	if err := st.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	return NewManager(testSecret, st)
}

func TestEnsureIssuesOnce(t *testing.T) {
	// WHAT: Ensure creates an identity and cookie for a fresh client, and
	// returns the existing ID for a returning one.
	// WHY: First contact must mint exactly one identity.
	m := newTestManager(t)

	w := httptest.NewRecorder()
	r := httptest.NewRequest("POST", "/trace/", nil)
	id, err := m.Ensure(w, r)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if !strings.HasPrefix(id, "ses_") {
		t.Errorf("id: got %q", id)
	}
	if len(w.Result().Cookies()) == 0 {
		t.Fatal("no cookie set")
	}

	profile, err := m.Store.GetUserInfo(r.Context(), id)
	if err != nil || profile == nil {
		t.Fatalf("identity not persisted: %v %v", profile, err)
	}

	// Returning client: ID comes from context, no new identity.
	r2 := httptest.NewRequest("POST", "/trace/", nil)
	r2 = r2.WithContext(context.WithValue(r2.Context(), idKey{}, id))
	w2 := httptest.NewRecorder()
	id2, err := m.Ensure(w2, r2)
	if err != nil {
		t.Fatalf("ensure again: %v", err)
	}
	if id2 != id {
		t.Errorf("got %q, want %q", id2, id)
	}
	if len(w2.Result().Cookies()) != 0 {
		t.Error("cookie reissued for an existing session")
	}
}

func TestLoginMergesProfile(t *testing.T) {
	// WHAT: Successive logins merge profile keys under one preserved ID.
	// WHY: Identity records are upsert-by-identifier, never recreated.
	m := newTestManager(t)

	w := httptest.NewRecorder()
	r := httptest.NewRequest("POST", "/login", nil)
	id, merged, err := m.Login(w, r, map[string]any{"default_subject": "alice"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if merged["default_subject"] != "alice" {
		t.Errorf("merged: %v", merged)
	}

	r2 := httptest.NewRequest("POST", "/login", nil)
	r2 = r2.WithContext(context.WithValue(r2.Context(), idKey{}, id))
	id2, merged2, err := m.Login(httptest.NewRecorder(), r2, map[string]any{"team": "blue"})
	if err != nil {
		t.Fatalf("second login: %v", err)
	}
	if id2 != id {
		t.Errorf("id changed: %q vs %q", id2, id)
	}
	if merged2["default_subject"] != "alice" || merged2["team"] != "blue" {
		t.Errorf("merge: %v", merged2)
	}
	if merged2["id"] != id {
		t.Errorf("stored id: %v", merged2["id"])
	}
}
