package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/danskode/mulle-i-hulen/internal/domain"
	"github.com/danskode/mulle-i-hulen/internal/repository"
	"github.com/danskode/mulle-i-hulen/internal/service/auth"
	"github.com/danskode/mulle-i-hulen/internal/service/member"
	"github.com/danskode/mulle-i-hulen/pkg/config"
	"github.com/danskode/mulle-i-hulen/pkg/crypto"
	jwtpkg "github.com/danskode/mulle-i-hulen/pkg/jwt"
)

const testSecret = "router-test-secret"

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() config.APIConfig {
	return config.APIConfig{
		JWTSecret:     testSecret,
		TokenTTL:      time.Hour,
		BcryptCost:    bcrypt.MinCost,
		ResetTokenTTL: time.Hour,
	}
}

type userRepoMock struct {
	createFunc              func(ctx context.Context, user *domain.User) error
	listFunc                func(ctx context.Context) ([]domain.User, error)
	getByUsernameFunc       func(ctx context.Context, username string) (*domain.User, error)
	getByEmailFunc          func(ctx context.Context, email string) (*domain.User, error)
	getByResetTokenFunc     func(ctx context.Context, token string, now time.Time) (*domain.User, error)
	clearFirstLoginFunc     func(ctx context.Context, id string) error
	setResetTokenFunc       func(ctx context.Context, id, token string, expiresAt time.Time) error
	updatePasswordResetFunc func(ctx context.Context, id string, hash []byte, token string, now time.Time) error
}

func (m *userRepoMock) CreateUser(ctx context.Context, user *domain.User) error {
	if m.createFunc == nil {
		return errors.New("unexpected CreateUser call")
	}
	return m.createFunc(ctx, user)
}

func (m *userRepoMock) ListUsers(ctx context.Context) ([]domain.User, error) {
	if m.listFunc == nil {
		return nil, errors.New("unexpected ListUsers call")
	}
	return m.listFunc(ctx)
}

func (m *userRepoMock) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	if m.getByUsernameFunc == nil {
		return nil, errors.New("unexpected GetUserByUsername call")
	}
	return m.getByUsernameFunc(ctx, username)
}

func (m *userRepoMock) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	if m.getByEmailFunc == nil {
		return nil, errors.New("unexpected GetUserByEmail call")
	}
	return m.getByEmailFunc(ctx, email)
}

func (m *userRepoMock) GetUserByResetToken(ctx context.Context, token string, now time.Time) (*domain.User, error) {
	if m.getByResetTokenFunc == nil {
		return nil, errors.New("unexpected GetUserByResetToken call")
	}
	return m.getByResetTokenFunc(ctx, token, now)
}

func (m *userRepoMock) ClearFirstLogin(ctx context.Context, id string) error {
	if m.clearFirstLoginFunc == nil {
		return errors.New("unexpected ClearFirstLogin call")
	}
	return m.clearFirstLoginFunc(ctx, id)
}

func (m *userRepoMock) SetResetToken(ctx context.Context, id, token string, expiresAt time.Time) error {
	if m.setResetTokenFunc == nil {
		return errors.New("unexpected SetResetToken call")
	}
	return m.setResetTokenFunc(ctx, id, token, expiresAt)
}

func (m *userRepoMock) UpdatePasswordAndClearReset(ctx context.Context, id string, hash []byte, token string, now time.Time) error {
	if m.updatePasswordResetFunc == nil {
		return errors.New("unexpected UpdatePasswordAndClearReset call")
	}
	return m.updatePasswordResetFunc(ctx, id, hash, token, now)
}

type mailerStub struct{}

func (mailerStub) SendWelcomeEmail(context.Context, string, string) error { return nil }
func (mailerStub) SendPasswordResetEmail(context.Context, string, string, string) error {
	return nil
}

func newTestRouter(t *testing.T, repo *userRepoMock) *Router {
	t.Helper()
	cfg := testConfig()
	log := newLogger()
	authSvc := auth.New(repo, mailerStub{}, log, cfg)
	memberSvc := member.New(repo, log, cfg)
	router := NewRouter(log, authSvc, memberSvc, NewMemoryRateLimiter(), testSecret, nil)
	t.Cleanup(router.Close)
	return router
}

func doJSON(t *testing.T, router *Router, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return payload
}

func TestLoginEndpointSuccess(t *testing.T) {
	hash, err := crypto.HashPassword("Zappa1234", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	repo := &userRepoMock{
		getByUsernameFunc: func(_ context.Context, username string) (*domain.User, error) {
			if username != "bjorn" {
				return nil, repository.ErrNotFound
			}
			return &domain.User{ID: "id-1", Username: "bjorn", PasswordHash: hash, Role: domain.RoleAdmin}, nil
		},
	}
	router := newTestRouter(t, repo)

	rec := doJSON(t, router, http.MethodPost, "/api/login", `{"username":"bjorn","password":"Zappa1234"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	payload := decodeBody(t, rec)
	if payload["username"] != "bjorn" || payload["role"] != domain.RoleAdmin {
		t.Fatalf("unexpected payload: %v", payload)
	}
	token, _ := payload["token"].(string)
	claims, err := jwtpkg.Parse(token, testSecret)
	if err != nil {
		t.Fatalf("expected parsable token: %v", err)
	}
	if claims.Username != "bjorn" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestLoginEndpointHidesAccountExistence(t *testing.T) {
	hash, err := crypto.HashPassword("Zappa1234", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	repo := &userRepoMock{
		getByUsernameFunc: func(_ context.Context, username string) (*domain.User, error) {
			if username == "bjorn" {
				return &domain.User{ID: "id-1", Username: "bjorn", PasswordHash: hash}, nil
			}
			return nil, repository.ErrNotFound
		},
	}
	router := newTestRouter(t, repo)

	missing := doJSON(t, router, http.MethodPost, "/api/login", `{"username":"ghost","password":"Zappa1234"}`, nil)
	wrong := doJSON(t, router, http.MethodPost, "/api/login", `{"username":"bjorn","password":"NotZappa1"}`, nil)

	if missing.Code != http.StatusUnauthorized || wrong.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for both, got %d and %d", missing.Code, wrong.Code)
	}
	if missing.Body.String() != wrong.Body.String() {
		t.Fatalf("bodies must not reveal which check failed:\n%s\n%s", missing.Body.String(), wrong.Body.String())
	}
}

func TestLoginEndpointBadRequests(t *testing.T) {
	router := newTestRouter(t, &userRepoMock{})

	if rec := doJSON(t, router, http.MethodPost, "/api/login", `not json`, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed JSON, got %d", rec.Code)
	}
	if rec := doJSON(t, router, http.MethodPost, "/api/login", `{"username":"","password":""}`, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty credentials, got %d", rec.Code)
	}
	if rec := doJSON(t, router, http.MethodGet, "/api/login", ``, nil); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET, got %d", rec.Code)
	}
}

func TestLoginEndpointRateLimited(t *testing.T) {
	repo := &userRepoMock{
		getByUsernameFunc: func(context.Context, string) (*domain.User, error) {
			return nil, repository.ErrNotFound
		},
	}
	router := newTestRouter(t, repo)

	headers := map[string]string{"X-Forwarded-For": "203.0.113.9"}
	for i := 0; i < 5; i++ {
		rec := doJSON(t, router, http.MethodPost, "/api/login", `{"username":"ghost","password":"Zappa1234"}`, headers)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401, got %d", i+1, rec.Code)
		}
	}
	rec := doJSON(t, router, http.MethodPost, "/api/login", `{"username":"ghost","password":"Zappa1234"}`, headers)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on sixth attempt, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
	if rec.Header().Get("X-RateLimit-Limit") != "5" {
		t.Fatalf("unexpected limit header: %q", rec.Header().Get("X-RateLimit-Limit"))
	}

	// A different client address is still allowed.
	other := doJSON(t, router, http.MethodPost, "/api/login", `{"username":"ghost","password":"Zappa1234"}`,
		map[string]string{"X-Forwarded-For": "203.0.113.10"})
	if other.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for fresh client, got %d", other.Code)
	}
}

func TestForgotPasswordEndpointGenericResponse(t *testing.T) {
	repo := &userRepoMock{
		getByEmailFunc: func(_ context.Context, email string) (*domain.User, error) {
			if email == "bjorn@zappaklubben.dk" {
				return &domain.User{ID: "id-1", Username: "bjorn", Email: email}, nil
			}
			return nil, repository.ErrNotFound
		},
		setResetTokenFunc: func(context.Context, string, string, time.Time) error {
			return nil
		},
	}
	router := newTestRouter(t, repo)

	known := doJSON(t, router, http.MethodPost, "/api/forgot-password", `{"email":"bjorn@zappaklubben.dk"}`, nil)
	unknown := doJSON(t, router, http.MethodPost, "/api/forgot-password", `{"email":"ghost@zappaklubben.dk"}`,
		map[string]string{"X-Forwarded-For": "203.0.113.20"})

	if known.Code != http.StatusOK || unknown.Code != http.StatusOK {
		t.Fatalf("expected 200 for both, got %d and %d", known.Code, unknown.Code)
	}
	if known.Body.String() != unknown.Body.String() {
		t.Fatalf("bodies must not reveal account existence:\n%s\n%s", known.Body.String(), unknown.Body.String())
	}

	if rec := doJSON(t, router, http.MethodPost, "/api/forgot-password", `{"email":"nope"}`,
		map[string]string{"X-Forwarded-For": "203.0.113.21"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed email, got %d", rec.Code)
	}
}

func TestResetPasswordEndpoint(t *testing.T) {
	repo := &userRepoMock{
		getByResetTokenFunc: func(_ context.Context, token string, _ time.Time) (*domain.User, error) {
			if token == "good-token" {
				return &domain.User{ID: "id-1", Username: "bjorn"}, nil
			}
			return nil, repository.ErrNotFound
		},
		updatePasswordResetFunc: func(context.Context, string, []byte, string, time.Time) error {
			return nil
		},
	}
	router := newTestRouter(t, repo)

	rec := doJSON(t, router, http.MethodPost, "/api/reset-password", `{"token":"good-token","newPassword":"NewZappa1"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	bad := doJSON(t, router, http.MethodPost, "/api/reset-password", `{"token":"bad-token","newPassword":"NewZappa1"}`,
		map[string]string{"X-Forwarded-For": "203.0.113.30"})
	if bad.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown token, got %d", bad.Code)
	}
}

func TestMembersEndpointRequiresAuth(t *testing.T) {
	router := newTestRouter(t, &userRepoMock{})

	if rec := doJSON(t, router, http.MethodGet, "/api/members", ``, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
	if rec := doJSON(t, router, http.MethodGet, "/api/members", ``,
		map[string]string{"Authorization": "Bearer not-a-token"}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d", rec.Code)
	}
}

func TestMembersEndpointList(t *testing.T) {
	repo := &userRepoMock{
		listFunc: func(context.Context) ([]domain.User, error) {
			return []domain.User{
				{ID: "id-1", Username: "bjorn", Role: domain.RoleAdmin},
				{ID: "id-2", Username: "mulle", Role: domain.RoleProspect},
			}, nil
		},
	}
	router := newTestRouter(t, repo)

	token, err := jwtpkg.Generate("steen", domain.RoleUser, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	rec := doJSON(t, router, http.MethodGet, "/api/members", ``,
		map[string]string{"Authorization": "Bearer " + token})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	payload := decodeBody(t, rec)
	data, ok := payload["data"].([]any)
	if !ok || len(data) != 2 {
		t.Fatalf("expected 2 members in payload, got %v", payload)
	}
}

func TestMembersEndpointCreateForbiddenForNonAdmin(t *testing.T) {
	router := newTestRouter(t, &userRepoMock{})

	token, err := jwtpkg.Generate("steen", domain.RoleUser, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	rec := doJSON(t, router, http.MethodPost, "/api/members",
		`{"username":"nyt","email":"nyt@zappaklubben.dk","password":"Zappa1234","role":"USER"}`,
		map[string]string{"Authorization": "Bearer " + token})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestMembersEndpointCreateAsAdmin(t *testing.T) {
	repo := &userRepoMock{
		createFunc: func(_ context.Context, user *domain.User) error {
			if !user.FirstLogin {
				return fmt.Errorf("expected first-login flag on new member")
			}
			return nil
		},
	}
	router := newTestRouter(t, repo)

	token, err := jwtpkg.Generate("bjorn", domain.RoleAdmin, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	rec := doJSON(t, router, http.MethodPost, "/api/members",
		`{"username":"nyt","email":"nyt@zappaklubben.dk","password":"Zappa1234","role":"USER"}`,
		map[string]string{"Authorization": "Bearer " + token})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	payload := decodeBody(t, rec)
	data, ok := payload["data"].(map[string]any)
	if !ok || data["username"] != "nyt" {
		t.Fatalf("unexpected payload: %v", payload)
	}
}

func TestMembersEndpointCreateDuplicate(t *testing.T) {
	repo := &userRepoMock{
		createFunc: func(context.Context, *domain.User) error {
			return repository.ErrDuplicate
		},
	}
	router := newTestRouter(t, repo)

	token, err := jwtpkg.Generate("bjorn", domain.RoleAdmin, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	rec := doJSON(t, router, http.MethodPost, "/api/members",
		`{"username":"bjorn","email":"bjorn@zappaklubben.dk","password":"Zappa1234","role":"ADMIN"}`,
		map[string]string{"Authorization": "Bearer " + token})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for duplicate, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHealthzEndpoint(t *testing.T) {
	router := newTestRouter(t, &userRepoMock{})

	rec := doJSON(t, router, http.MethodGet, "/healthz", ``, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	payload := decodeBody(t, rec)
	if payload["status"] != "ok" {
		t.Fatalf("unexpected health payload: %v", payload)
	}
}

func TestHealthzEndpointDegraded(t *testing.T) {
	cfg := testConfig()
	log := newLogger()
	authSvc := auth.New(&userRepoMock{}, mailerStub{}, log, cfg)
	memberSvc := member.New(&userRepoMock{}, log, cfg)
	router := NewRouter(log, authSvc, memberSvc, NewMemoryRateLimiter(), testSecret, func(context.Context) error {
		return errors.New("connection refused")
	})
	t.Cleanup(router.Close)

	rec := doJSON(t, router, http.MethodGet, "/healthz", ``, nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when database is down, got %d", rec.Code)
	}
}
