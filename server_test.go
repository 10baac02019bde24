package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"taskauth/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// setupTestServer wires the full engine against a throwaway sqlite database
// so the HTTP flows run without a Postgres instance.
func setupTestServer(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg = &Config{
		SecretKey:                "test-secret",
		AccessTokenExpireMinutes: 15,
		RefreshMaxAge:            60 * 60 * 24 * 7,
	}
	codec = token.NewCodec([]byte(cfg.SecretKey), cfg.AccessTTL())

	var err error
	db, err = gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := autoMigrate(db); err != nil {
		t.Fatalf("migration failed: %v", err)
	}

	r := gin.New()
	setupRoutes(r)
	return r
}

// performRequest posts a JSON body with optional bearer token and cookies.
func performRequest(r http.Handler, method, path string, body io.Reader, bearer string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	return bytes.NewReader(b)
}

func refreshCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == refreshCookieName {
			return c
		}
	}
	t.Fatal("no refresh_token cookie in response")
	return nil
}

// registerAndLogin creates an account and logs in, returning the access token
// and the refresh cookie.
func registerAndLogin(t *testing.T, r http.Handler, email string) (string, *http.Cookie) {
	t.Helper()
	rec := performRequest(r, http.MethodPost, "/api/register",
		jsonBody(t, gin.H{"username": "user", "email": email, "password": "password123"}), "")
	if rec.Code != http.StatusCreated && rec.Code != http.StatusConflict {
		t.Fatalf("register failed status=%d body=%s", rec.Code, rec.Body.String())
	}
	rec = performRequest(r, http.MethodPost, "/api/login",
		jsonBody(t, gin.H{"email": email, "password": "password123"}), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login failed status=%d body=%s", rec.Code, rec.Body.String())
	}
	var resp map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	access, _ := resp["access_token"].(string)
	if access == "" {
		t.Fatalf("empty access token in login response: %+v", resp)
	}
	return access, refreshCookie(t, rec)
}

func TestRegisterValidationAndConflict(t *testing.T) {
	r := setupTestServer(t)

	rec := performRequest(r, http.MethodPost, "/api/register",
		jsonBody(t, gin.H{"username": "u1", "email": "a@example.com", "password": "password123"}), "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("register failed status=%d body=%s", rec.Code, rec.Body.String())
	}

	// duplicate email
	rec = performRequest(r, http.MethodPost, "/api/register",
		jsonBody(t, gin.H{"username": "u2", "email": "a@example.com", "password": "password123"}), "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate email got %d", rec.Code)
	}

	// field validation names the field
	rec = performRequest(r, http.MethodPost, "/api/register",
		jsonBody(t, gin.H{"username": "u3", "email": "not-an-email", "password": "password123"}), "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for bad email got %d body=%s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Detail struct {
			Field string `json:"field"`
		} `json:"detail"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Detail.Field != "email" {
		t.Fatalf("expected offending field email, got %q", resp.Detail.Field)
	}

	// short password
	rec = performRequest(r, http.MethodPost, "/api/register",
		jsonBody(t, gin.H{"username": "u4", "email": "b@example.com", "password": "short"}), "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for short password got %d", rec.Code)
	}
}

func TestLoginFailures(t *testing.T) {
	r := setupTestServer(t)
	registerAndLogin(t, r, "a@example.com")

	rec := performRequest(r, http.MethodPost, "/api/login",
		jsonBody(t, gin.H{"email": "a@example.com", "password": "wrongwrong"}), "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong password got %d", rec.Code)
	}
	rec = performRequest(r, http.MethodPost, "/api/login",
		jsonBody(t, gin.H{"email": "nobody@example.com", "password": "password123"}), "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown email got %d", rec.Code)
	}
}

func TestRefreshAndSignoutWithoutCookie(t *testing.T) {
	r := setupTestServer(t)

	rec := performRequest(r, http.MethodPost, "/api/refresh_token/valid", nil, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without cookie got %d", rec.Code)
	}
	rec = performRequest(r, http.MethodPost, "/api/signout", nil, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for signout without cookie got %d", rec.Code)
	}
}

type sessionsResponse struct {
	Informations struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Sessions []struct {
			JTI     string `json:"jti_id"`
			Current bool   `json:"current"`
		} `json:"sessions"`
	} `json:"informations"`
}

func listSessions(t *testing.T, r http.Handler, access string) sessionsResponse {
	t.Helper()
	rec := performRequest(r, http.MethodPost, "/api/settings/service", nil, access)
	if rec.Code != http.StatusOK {
		t.Fatalf("settings service failed status=%d body=%s", rec.Code, rec.Body.String())
	}
	var resp sessionsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad settings response: %v", err)
	}
	return resp
}

func TestSessionLifecycle(t *testing.T) {
	r := setupTestServer(t)

	// first device
	access1, cookie1 := registerAndLogin(t, r, "life@example.com")

	resp := listSessions(t, r, access1)
	if len(resp.Informations.Sessions) != 1 {
		t.Fatalf("expected one session, got %d", len(resp.Informations.Sessions))
	}
	if !resp.Informations.Sessions[0].Current {
		t.Fatal("expected the only session to be current")
	}
	if resp.Informations.Email != "life@example.com" {
		t.Fatalf("unexpected email %q", resp.Informations.Email)
	}
	jti1 := resp.Informations.Sessions[0].JTI

	// revoking one's own current session is refused
	rec := performRequest(r, http.MethodPost, "/api/settings/session/revoke",
		jsonBody(t, gin.H{"jti_id": jti1}), access1)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for self revoke got %d body=%s", rec.Code, rec.Body.String())
	}

	// second device logs in
	access2, cookie2 := registerAndLogin(t, r, "life@example.com")
	resp = listSessions(t, r, access2)
	if len(resp.Informations.Sessions) != 2 {
		t.Fatalf("expected two sessions, got %d", len(resp.Informations.Sessions))
	}
	currents := 0
	for _, s := range resp.Informations.Sessions {
		if s.Current {
			currents++
		}
	}
	if currents != 1 {
		t.Fatalf("expected exactly one current session, got %d", currents)
	}

	// second device revokes the first
	rec = performRequest(r, http.MethodPost, "/api/settings/session/revoke",
		jsonBody(t, gin.H{"jti_id": jti1}), access2)
	if rec.Code != http.StatusOK {
		t.Fatalf("revoke failed status=%d body=%s", rec.Code, rec.Body.String())
	}

	// revoking again reports failure, indistinguishable from a wrong id
	rec = performRequest(r, http.MethodPost, "/api/settings/session/revoke",
		jsonBody(t, gin.H{"jti_id": jti1}), access2)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for already-revoked session got %d", rec.Code)
	}

	// the revoked device can neither refresh nor use its access token
	rec = performRequest(r, http.MethodPost, "/api/refresh_token/valid", nil, "", cookie1)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 refreshing a revoked session got %d", rec.Code)
	}
	rec = performRequest(r, http.MethodPost, "/api/settings/service", nil, access1)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for access token of a revoked session got %d", rec.Code)
	}

	// the surviving device still refreshes
	rec = performRequest(r, http.MethodPost, "/api/refresh_token/valid", nil, "", cookie2)
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh failed status=%d body=%s", rec.Code, rec.Body.String())
	}
	var refreshResp map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &refreshResp)
	if refreshResp["token_type"] != "bearer" || refreshResp["access_token"] == "" {
		t.Fatalf("unexpected refresh response: %+v", refreshResp)
	}

	// signout revokes and a second signout finds nothing valid
	rec = performRequest(r, http.MethodPost, "/api/signout", nil, "", cookie2)
	if rec.Code != http.StatusOK {
		t.Fatalf("signout failed status=%d body=%s", rec.Code, rec.Body.String())
	}
	rec = performRequest(r, http.MethodPost, "/api/signout", nil, "", cookie2)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for repeated signout got %d", rec.Code)
	}
	rec = performRequest(r, http.MethodPost, "/api/refresh_token/valid", nil, "", cookie2)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 refreshing after signout got %d", rec.Code)
	}
}

func TestRevokeRejectsMalformedID(t *testing.T) {
	r := setupTestServer(t)
	access, _ := registerAndLogin(t, r, "m@example.com")

	rec := performRequest(r, http.MethodPost, "/api/settings/session/revoke",
		jsonBody(t, gin.H{"jti_id": "not-a-uuid"}), access)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for malformed id got %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestSettingsRequiresAuth(t *testing.T) {
	r := setupTestServer(t)

	rec := performRequest(r, http.MethodPost, "/api/settings/service", nil, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without bearer token got %d", rec.Code)
	}
	rec = performRequest(r, http.MethodPost, "/api/settings/service", nil, "garbage")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token got %d", rec.Code)
	}
}
