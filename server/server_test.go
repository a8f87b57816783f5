package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/skillsenselab/identity/account"
	"github.com/skillsenselab/identity/config"
	"github.com/skillsenselab/identity/errors"
	"github.com/skillsenselab/identity/logger"
	"github.com/skillsenselab/identity/password"
	"github.com/skillsenselab/identity/rbac"
	"github.com/skillsenselab/identity/store"
	"github.com/skillsenselab/identity/token"
)

type testEnv struct {
	engine  *gin.Engine
	store   *store.Gorm
	manager *rbac.Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := logger.NewDefault("test")
	s, err := store.Open(":memory:", log)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	ctx := context.Background()
	for _, name := range []string{"admin", "user"} {
		if err := s.CreateRole(ctx, &store.Role{Name: name}); err != nil {
			t.Fatalf("seed role %s: %v", name, err)
		}
	}

	tokens, err := token.NewService(token.Config{Secret: "0123456789abcdef0123456789abcdef"}, s, s, log)
	if err != nil {
		t.Fatalf("token service: %v", err)
	}
	authz := rbac.NewAuthorizer(s, "admin", log)
	manager := rbac.NewManager(s, authz, log)
	accounts, err := account.NewService(account.Config{}, s, password.NewBcryptHasher(password.WithCost(4)), tokens, nil, account.NewLogMailer(log), log)
	if err != nil {
		t.Fatalf("account service: %v", err)
	}

	srv := New(config.ServerConfig{Host: "127.0.0.1", Port: 0, Mode: "test"}, Deps{
		Accounts: accounts,
		Tokens:   tokens,
		Authz:    authz,
		Manager:  manager,
	}, log)
	return &testEnv{engine: srv.Engine(), store: s, manager: manager}
}

func (e *testEnv) do(t *testing.T, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) errors.ErrorCode {
	t.Helper()
	var resp errors.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body %q: %v", w.Body.String(), err)
	}
	return resp.Error.Code
}

func dataField(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp struct {
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	return resp.Data
}

// register creates an account over HTTP and returns its id.
func (e *testEnv) register(t *testing.T, email, username string) uuid.UUID {
	t.Helper()
	w := e.do(t, http.MethodPost, "/v1/auth/register", "", gin.H{
		"email": email, "username": username, "password": "correct horse",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register status = %d: %s", w.Code, w.Body.String())
	}
	id, err := uuid.Parse(dataField(t, w)["id"].(string))
	if err != nil {
		t.Fatalf("parse user id: %v", err)
	}
	return id
}

// login returns the token pair for the account.
func (e *testEnv) login(t *testing.T, email string) (access, refresh string) {
	t.Helper()
	w := e.do(t, http.MethodPost, "/v1/auth/login", "", gin.H{"email": email, "password": "correct horse"})
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d: %s", w.Code, w.Body.String())
	}
	tokens := dataField(t, w)["tokens"].(map[string]any)
	return tokens["access_token"].(string), tokens["refresh_token"].(string)
}

// promote makes the account an admin.
func (e *testEnv) promote(t *testing.T, userID uuid.UUID) {
	t.Helper()
	admin, err := e.store.FindRoleByName(context.Background(), "admin")
	if err != nil || admin == nil {
		t.Fatalf("find admin role: %v", err)
	}
	if err := e.manager.AssignUserRoles(context.Background(), userID, []uuid.UUID{admin.ID}); err != nil {
		t.Fatalf("promote: %v", err)
	}
}

func TestServer_Health(t *testing.T) {
	env := newTestEnv(t)
	if w := env.do(t, http.MethodGet, "/health", "", nil); w.Code != http.StatusOK {
		t.Errorf("health status = %d", w.Code)
	}
}

func TestServer_RegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "kim@example.com", "kim")

	access, refresh := env.login(t, "kim@example.com")
	if access == "" || refresh == "" {
		t.Fatal("login must return both tokens")
	}

	w := env.do(t, http.MethodPost, "/v1/auth/login", "", gin.H{"email": "kim@example.com", "password": "wrong"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("bad login status = %d, want 401", w.Code)
	}
	if code := errorCode(t, w); code != errors.ErrCodeInvalidCredentials {
		t.Errorf("bad login code = %s, want %s", code, errors.ErrCodeInvalidCredentials)
	}

	w = env.do(t, http.MethodPost, "/v1/auth/register", "", gin.H{"email": "kim@example.com", "username": "kim2", "password": "correct horse"})
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate register status = %d, want 409", w.Code)
	}
}

func TestServer_GuardChain_Distinctions(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "kim@example.com", "kim")
	access, _ := env.login(t, "kim@example.com")

	// No credentials at all.
	w := env.do(t, http.MethodGet, "/v1/auth/me", "", nil)
	if w.Code != http.StatusUnauthorized || errorCode(t, w) != errors.ErrCodeTokenMissing {
		t.Errorf("missing token: got %d/%s", w.Code, errorCode(t, w))
	}

	// Malformed scheme.
	req := httptest.NewRequest(http.MethodGet, "/v1/auth/me", nil)
	req.Header.Set("Authorization", "Basic abc")
	rec := httptest.NewRecorder()
	env.engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized || errorCode(t, rec) != errors.ErrCodeTokenMissing {
		t.Errorf("bad scheme: got %d/%s", rec.Code, errorCode(t, rec))
	}

	// Present but invalid.
	w = env.do(t, http.MethodGet, "/v1/auth/me", "not-a-token", nil)
	if w.Code != http.StatusUnauthorized || errorCode(t, w) != errors.ErrCodeTokenInvalid {
		t.Errorf("invalid token: got %d/%s", w.Code, errorCode(t, w))
	}

	// Valid but not an admin: authenticated yet forbidden.
	w = env.do(t, http.MethodGet, "/v1/admin/users", access, nil)
	if w.Code != http.StatusForbidden || errorCode(t, w) != errors.ErrCodeForbidden {
		t.Errorf("non-admin: got %d/%s", w.Code, errorCode(t, w))
	}

	// Valid token on its own surface.
	w = env.do(t, http.MethodGet, "/v1/auth/me", access, nil)
	if w.Code != http.StatusOK {
		t.Errorf("me status = %d: %s", w.Code, w.Body.String())
	}
}

func TestServer_AdminSurface(t *testing.T) {
	env := newTestEnv(t)
	adminID := env.register(t, "root@example.com", "root")
	env.promote(t, adminID)
	access, _ := env.login(t, "root@example.com")

	// Role and permission management over HTTP.
	w := env.do(t, http.MethodPost, "/v1/admin/permissions", access, gin.H{"name": "users:read"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create permission status = %d: %s", w.Code, w.Body.String())
	}
	permID := dataField(t, w)["id"].(string)

	w = env.do(t, http.MethodPost, "/v1/admin/roles", access, gin.H{
		"name": "viewer", "permission_ids": []string{permID},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create role status = %d: %s", w.Code, w.Body.String())
	}

	w = env.do(t, http.MethodPost, "/v1/admin/roles", access, gin.H{"name": "viewer"})
	if w.Code != http.StatusConflict || errorCode(t, w) != errors.ErrCodeRoleExists {
		t.Errorf("duplicate role: got %d/%s", w.Code, errorCode(t, w))
	}

	w = env.do(t, http.MethodGet, "/v1/admin/users", access, nil)
	if w.Code != http.StatusOK {
		t.Errorf("list users status = %d", w.Code)
	}

	w = env.do(t, http.MethodGet, "/v1/admin/users/not-a-uuid", access, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d, want 400", w.Code)
	}
}

func TestServer_BanOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	adminID := env.register(t, "root@example.com", "root")
	env.promote(t, adminID)
	adminAccess, _ := env.login(t, "root@example.com")

	userID := env.register(t, "kim@example.com", "kim")
	_, userRefresh := env.login(t, "kim@example.com")

	w := env.do(t, http.MethodPost, "/v1/admin/users/"+userID.String()+"/ban", adminAccess, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("ban status = %d: %s", w.Code, w.Body.String())
	}

	// The banned user's sessions are gone and login is refused.
	w = env.do(t, http.MethodPost, "/v1/auth/refresh", "", gin.H{"refresh_token": userRefresh})
	if errorCode(t, w) != errors.ErrCodeRefreshMissing {
		t.Errorf("banned refresh: got %d/%s", w.Code, errorCode(t, w))
	}
	w = env.do(t, http.MethodPost, "/v1/auth/login", "", gin.H{"email": "kim@example.com", "password": "correct horse"})
	if errorCode(t, w) != errors.ErrCodeAccountBanned {
		t.Errorf("banned login code = %s", errorCode(t, w))
	}

	w = env.do(t, http.MethodPost, "/v1/admin/users/"+userID.String()+"/unban", adminAccess, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("unban status = %d", w.Code)
	}
	env.login(t, "kim@example.com")
}

func TestServer_RefreshRotationOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "kim@example.com", "kim")
	_, refresh := env.login(t, "kim@example.com")

	w := env.do(t, http.MethodPost, "/v1/auth/refresh", "", gin.H{"refresh_token": refresh})
	if w.Code != http.StatusOK {
		t.Fatalf("refresh status = %d: %s", w.Code, w.Body.String())
	}

	// Replay of the rotated-out token is reuse.
	w = env.do(t, http.MethodPost, "/v1/auth/refresh", "", gin.H{"refresh_token": refresh})
	if w.Code != http.StatusUnauthorized || errorCode(t, w) != errors.ErrCodeTokenReused {
		t.Errorf("reuse: got %d/%s", w.Code, errorCode(t, w))
	}

	// Missing body maps to the refresh-specific code.
	w = env.do(t, http.MethodPost, "/v1/auth/refresh", "", gin.H{})
	if errorCode(t, w) != errors.ErrCodeRefreshMissing {
		t.Errorf("empty refresh code = %s", errorCode(t, w))
	}
}

func TestServer_LogoutOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "kim@example.com", "kim")
	_, refresh := env.login(t, "kim@example.com")

	w := env.do(t, http.MethodPost, "/v1/auth/logout", "", gin.H{"refresh_token": refresh})
	if w.Code != http.StatusNoContent {
		t.Fatalf("logout status = %d", w.Code)
	}
	w = env.do(t, http.MethodPost, "/v1/auth/refresh", "", gin.H{"refresh_token": refresh})
	if errorCode(t, w) != errors.ErrCodeRefreshMissing {
		t.Errorf("post-logout refresh code = %s", errorCode(t, w))
	}
}

func TestServer_Providers(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/v1/auth/providers", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("providers status = %d", w.Code)
	}
	w = env.do(t, http.MethodGet, "/v1/auth/oauth/google", "", nil)
	if w.Code != http.StatusNotFound || errorCode(t, w) != errors.ErrCodeProviderUnknown {
		t.Errorf("unconfigured provider: got %d/%s", w.Code, errorCode(t, w))
	}
}
