package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lyric-s/together-app-backend/internal/auth"
)

// memory fakes mirroring the PostgreSQL collaborators.

type fakeDirectory struct {
	accounts []*auth.Account
}

func (d *fakeDirectory) FindByUsername(_ context.Context, username string, kind auth.Kind) (*auth.Account, error) {
	for _, acc := range d.accounts {
		if acc.Username == username && kindMatches(acc.Kind, kind) {
			return acc, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (d *fakeDirectory) FindByID(_ context.Context, id string, kind auth.Kind) (*auth.Account, error) {
	for _, acc := range d.accounts {
		if acc.ID == id && kindMatches(acc.Kind, kind) {
			return acc, nil
		}
	}
	return nil, auth.ErrNotFound
}

func kindMatches(have, want auth.Kind) bool {
	if want == "" {
		return have != auth.KindAdmin
	}
	return have == want
}

type memoryTokenStore struct {
	mu      sync.Mutex
	records map[string]*auth.RefreshRecord
}

func (s *memoryTokenStore) key(kind auth.Kind, id string) string { return string(kind) + "/" + id }

func (s *memoryTokenStore) Save(_ context.Context, rec *auth.RefreshRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *rec
	s.records[s.key(rec.Kind, rec.Principal)] = &clone
	return nil
}

func (s *memoryTokenStore) Consume(_ context.Context, kind auth.Kind, principalID, jtiHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := s.key(kind, principalID)
	rec, ok := s.records[key]
	if !ok || rec.JTIHash != jtiHash || time.Now().After(rec.ExpiresAt) {
		return auth.ErrTokenReuseOrUnknown
	}
	delete(s.records, key)
	return nil
}

func (s *memoryTokenStore) Revoke(_ context.Context, kind auth.Kind, principalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, s.key(kind, principalID))
	return nil
}

func newTestAPI(t *testing.T) *API {
	t.Helper()
	aliceHash, err := auth.HashPassword("alice-password")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	adminHash, err := auth.HashPassword("admin-password")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	directory := &fakeDirectory{accounts: []*auth.Account{
		{ID: "user-1", Username: "alice", Email: "alice@example.org", Kind: auth.KindVolunteer, PasswordHash: aliceHash},
		{ID: "admin-1", Username: "root", Email: "admin@example.org", Kind: auth.KindAdmin, PasswordHash: adminHash},
	}}
	codec, err := auth.NewCodec([]byte("httpapi-test-secret-0123456789ab"), "together-test")
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	svc, err := auth.NewService(directory, &memoryTokenStore{records: map[string]*auth.RefreshRecord{}}, codec)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return New(Options{Auth: svc, Version: "test", RatePerSec: 1000, RateBurst: 1000})
}

func postForm(t *testing.T, handler http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func loginAs(t *testing.T, handler http.Handler, path, username, password string) tokenResponse {
	t.Helper()
	rr := postForm(t, handler, path, url.Values{"username": {username}, "password": {password}})
	if rr.Code != http.StatusOK {
		t.Fatalf("login as %s: expected 200, got %d (%s)", username, rr.Code, rr.Body.String())
	}
	var resp tokenResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode token response: %v", err)
	}
	return resp
}

func TestLoginEndpoint(t *testing.T) {
	handler := newTestAPI(t).Handler()

	resp := loginAs(t, handler, "/auth/token", "alice", "alice-password")
	if resp.TokenType != "bearer" {
		t.Fatalf("unexpected token_type %q", resp.TokenType)
	}
	if resp.UserType != auth.KindVolunteer {
		t.Fatalf("unexpected user_type %q", resp.UserType)
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		t.Fatal("token pair incomplete")
	}
}

func TestLoginEndpointUniformFailure(t *testing.T) {
	handler := newTestAPI(t).Handler()

	wrongPass := postForm(t, handler, "/auth/token", url.Values{"username": {"alice"}, "password": {"nope"}})
	unknown := postForm(t, handler, "/auth/token", url.Values{"username": {"ghost"}, "password": {"nope"}})

	for _, rr := range []*httptest.ResponseRecorder{wrongPass, unknown} {
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rr.Code)
		}
		if rr.Header().Get("WWW-Authenticate") != "Bearer" {
			t.Fatal("missing WWW-Authenticate header")
		}
		var body map[string]any
		if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["error"] != "incorrect username or password" {
			t.Fatalf("unexpected error body: %v", body["error"])
		}
	}
}

func TestRefreshEndpointRotatesAndRejectsReuse(t *testing.T) {
	handler := newTestAPI(t).Handler()
	first := loginAs(t, handler, "/auth/token", "alice", "alice-password")

	refreshBody := func(token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/auth/refresh",
			strings.NewReader(`{"refresh_token":"`+token+`"}`))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr
	}

	rr := refreshBody(first.RefreshToken)
	if rr.Code != http.StatusOK {
		t.Fatalf("refresh: expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}
	var rotated tokenResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &rotated); err != nil {
		t.Fatalf("decode refresh response: %v", err)
	}
	if rotated.RefreshToken == first.RefreshToken {
		t.Fatal("refresh token was not rotated")
	}

	if rr := refreshBody(first.RefreshToken); rr.Code != http.StatusUnauthorized {
		t.Fatalf("reused token: expected 401, got %d", rr.Code)
	}
	// An access token presented as a refresh token is rejected the same way.
	if rr := refreshBody(first.AccessToken); rr.Code != http.StatusUnauthorized {
		t.Fatalf("access token on refresh: expected 401, got %d", rr.Code)
	}
}

func TestProtectedRoutes(t *testing.T) {
	handler := newTestAPI(t).Handler()
	user := loginAs(t, handler, "/auth/token", "alice", "alice-password")
	admin := loginAs(t, handler, "/internal/admin/login", "root", "admin-password")

	get := func(path, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr
	}

	if rr := get("/auth/me", ""); rr.Code != http.StatusUnauthorized {
		t.Fatalf("no token: expected 401, got %d", rr.Code)
	}
	if rr := get("/auth/me", "garbage"); rr.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token: expected 401, got %d", rr.Code)
	}
	// A refresh token never authenticates a request.
	if rr := get("/auth/me", user.RefreshToken); rr.Code != http.StatusUnauthorized {
		t.Fatalf("refresh token: expected 401, got %d", rr.Code)
	}

	rr := get("/auth/me", user.AccessToken)
	if rr.Code != http.StatusOK {
		t.Fatalf("me: expected 200, got %d", rr.Code)
	}
	var me map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &me); err != nil {
		t.Fatalf("decode me: %v", err)
	}
	if me["username"] != "alice" || me["user_type"] != "volunteer" {
		t.Fatalf("unexpected profile: %v", me)
	}

	// A valid volunteer token is forbidden, not unauthorized, on admin routes.
	if rr := get("/internal/admin/me", user.AccessToken); rr.Code != http.StatusForbidden {
		t.Fatalf("volunteer on admin route: expected 403, got %d", rr.Code)
	}
	if rr := get("/internal/admin/me", admin.AccessToken); rr.Code != http.StatusOK {
		t.Fatalf("admin on admin route: expected 200, got %d", rr.Code)
	}
}

func TestLogoutEndpoint(t *testing.T) {
	handler := newTestAPI(t).Handler()
	user := loginAs(t, handler, "/auth/token", "alice", "alice-password")

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+user.AccessToken)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("logout: expected 204, got %d", rr.Code)
	}

	// The revoked refresh token is gone.
	refreshReq := httptest.NewRequest(http.MethodPost, "/auth/refresh",
		strings.NewReader(`{"refresh_token":"`+user.RefreshToken+`"}`))
	refreshReq.Header.Set("Content-Type", "application/json")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, refreshReq)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("refresh after logout: expected 401, got %d", rr.Code)
	}
}

func TestHealthz(t *testing.T) {
	handler := newTestAPI(t).Handler()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got := rr.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("missing security header, got %q", got)
	}
}
