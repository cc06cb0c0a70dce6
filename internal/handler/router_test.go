package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tokengate/tokengate-go/internal/crypto"
	"github.com/tokengate/tokengate-go/internal/middleware"
	"github.com/tokengate/tokengate-go/internal/model"
	"github.com/tokengate/tokengate-go/internal/repository"
	"github.com/tokengate/tokengate-go/internal/service"
)

const testSecret = "handler-test-secret-0123456789abcdef"

type codeCapture struct {
	mu    sync.Mutex
	codes map[string]string
}

func (c *codeCapture) SendCode(_ context.Context, phone, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.codes[phone] = code
	return nil
}

type testServer struct {
	handler http.Handler
	codes   *codeCapture
}

func newTestServer(t *testing.T, upstream http.Handler) *testServer {
	t.Helper()

	tokens, err := crypto.NewTokenService(testSecret)
	require.NoError(t, err)
	codes, err := crypto.NewCodeGenerator(testSecret)
	require.NoError(t, err)

	users := repository.NewMemoryUserRepository()
	require.NoError(t, service.SeedDemoAccount(context.Background(), users, time.Now()))

	capture := &codeCapture{codes: map[string]string{}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.NewAuthService(users, tokens, codes,
		service.WithCodeSender(capture),
		service.WithLogger(logger),
	)

	limiter := middleware.NewRateLimiter(1000, 1000)
	t.Cleanup(limiter.Stop)

	return &testServer{
		handler: NewRouter(RouterConfig{
			Auth:        svc,
			Logger:      logger,
			RateLimiter: limiter,
			Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Write([]byte("metrics"))
			}),
			Upstream: upstream,
			Locales:  []string{"en", "de"},
		}),
		codes: capture,
	}
}

func (s *testServer) do(t *testing.T, method, target, body string, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, m := range mutate {
		m(req)
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func bearer(token string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func cookie(token string) func(*http.Request) {
	return func(r *http.Request) { r.AddCookie(&http.Cookie{Name: middleware.CookieName, Value: token}) }
}

func decodeAuth(t *testing.T, rec *httptest.ResponseRecorder) model.AuthResponse {
	t.Helper()
	var resp model.AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func authCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.CookieName {
			return c
		}
	}
	t.Fatalf("no %s cookie in response", middleware.CookieName)
	return nil
}

func (s *testServer) login(t *testing.T) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/auth/login",
		`{"identifier":"test@example.com","password":"password123"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	return decodeAuth(t, rec).Token
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = s.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, "metrics", rec.Body.String())
}

func TestHealth_StoreDown(t *testing.T) {
	tokens, err := crypto.NewTokenService(testSecret)
	require.NoError(t, err)
	codes, err := crypto.NewCodeGenerator(testSecret)
	require.NoError(t, err)

	h := NewRouter(RouterConfig{
		Auth:   service.NewAuthService(repository.NewMemoryUserRepository(), tokens, codes),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Health: func(context.Context) error { return errors.New("connection refused") },
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestLogin(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodPost, "/api/auth/login",
		`{"identifier":"testuser","password":"password123"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	resp := decodeAuth(t, rec)
	assert.Equal(t, "1", resp.User.ID)
	assert.Equal(t, "test@example.com", resp.User.Email)
	assert.Equal(t, 3, strings.Count(resp.Token, ".")+1)

	c := authCookie(t, rec)
	assert.Equal(t, resp.Token, c.Value)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, 86400, c.MaxAge)
}

func TestLogin_Errors(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{"malformed json", `{"identifier":`, http.StatusBadRequest},
		{"missing password", `{"identifier":"testuser"}`, http.StatusBadRequest},
		{"wrong password", `{"identifier":"testuser","password":"nope"}`, http.StatusUnauthorized},
		{"unknown account", `{"identifier":"ghost","password":"nope"}`, http.StatusUnauthorized},
		{"oversized body", `{"identifier":"` + strings.Repeat("a", maxBodyBytes) + `"}`, http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/auth/login", tt.body)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestPhoneLogin(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodPost, "/api/auth/phone/code", `{"phone":"13912345678"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"sent":true}`, rec.Body.String())

	code := s.codes.codes["13912345678"]
	rec = s.do(t, http.MethodPost, "/api/auth/phone/login",
		`{"phone":"13912345678","code":"`+code+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "phone_13912345678", decodeAuth(t, rec).User.ID)
	authCookie(t, rec)

	rec = s.do(t, http.MethodPost, "/api/auth/phone/code", `{"phone":"42"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSignUp(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodPost, "/api/auth/signup",
		`{"email":"new@example.com","password":"pw","name":"New"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	resp := decodeAuth(t, rec)
	assert.Equal(t, "New", resp.User.Name)
	authCookie(t, rec)

	rec = s.do(t, http.MethodPost, "/api/auth/signup", `{"email":"new@example.com","password":"pw"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/auth/signup", `{"password":"pw"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMe(t *testing.T) {
	s := newTestServer(t, nil)
	token := s.login(t)

	for name, withToken := range map[string]func(*http.Request){
		"bearer": bearer(token),
		"cookie": cookie(token),
	} {
		t.Run(name, func(t *testing.T) {
			rec := s.do(t, http.MethodGet, "/api/auth/me", "", withToken)
			require.Equal(t, http.StatusOK, rec.Code)

			var body struct {
				User model.UserInfo `json:"user"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, "1", body.User.ID)
			assert.NotEmpty(t, body.User.CreatedAt)
		})
	}

	rec := s.do(t, http.MethodGet, "/api/auth/me", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/auth/me", "", bearer(token+"x"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "invalid_token")
	assert.NotContains(t, rec.Body.String(), token)
}

func TestRefreshAndLogout(t *testing.T) {
	s := newTestServer(t, nil)
	token := s.login(t)

	rec := s.do(t, http.MethodPost, "/api/auth/refresh", "", bearer(token))
	require.Equal(t, http.StatusOK, rec.Code)
	var refreshed model.RefreshResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &refreshed))
	assert.NotEmpty(t, refreshed.Token)
	assert.Equal(t, refreshed.Token, authCookie(t, rec).Value)

	rec = s.do(t, http.MethodPost, "/api/auth/refresh", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/auth/logout", "", cookie(token))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	c := authCookie(t, rec)
	assert.Empty(t, c.Value)
	assert.Negative(t, c.MaxAge)
}

func TestExampleAPI(t *testing.T) {
	s := newTestServer(t, nil)
	token := s.login(t)

	rec := s.do(t, http.MethodGet, "/api/example", "", bearer(token))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"1"`)

	rec = s.do(t, http.MethodPost, "/api/example", `{"title":"hello","userId":"spoofed"}`, bearer(token))
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "hello", body.Data["title"])
	assert.Equal(t, "1", body.Data["userId"])

	rec = s.do(t, http.MethodGet, "/api/example", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestFallback_RouteGuard(t *testing.T) {
	var upstreamPaths []string
	upstream := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upstreamPaths = append(upstreamPaths, r.URL.Path)
		w.Write([]byte("page"))
	})
	s := newTestServer(t, upstream)
	token := s.login(t)

	rec := s.do(t, http.MethodGet, "/dashboard", "")
	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Equal(t, "/login?returnUrl=%2Fdashboard", rec.Header().Get("Location"))

	rec = s.do(t, http.MethodGet, "/dashboard", "", cookie(token))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/de/suna", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, []string{"/dashboard", "/de/suna"}, upstreamPaths)
}

func TestFallback_NoUpstream(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodGet, "/pricing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/projects", "")
	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
}

func TestUpstreamProxy(t *testing.T) {
	front := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("front-end " + r.URL.Path))
	}))
	defer front.Close()

	proxy, err := NewUpstreamProxy(front.URL)
	require.NoError(t, err)
	s := newTestServer(t, proxy)

	rec := s.do(t, http.MethodGet, "/help/getting-started", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "front-end /help/getting-started", rec.Body.String())

	_, err = NewUpstreamProxy("localhost:3000")
	assert.Error(t, err)
}

func TestUpstreamProxy_Unavailable(t *testing.T) {
	front := httptest.NewServer(http.NotFoundHandler())
	url := front.URL
	front.Close()

	proxy, err := NewUpstreamProxy(url)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	proxy.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestRateLimitedAuthRoutes(t *testing.T) {
	tokens, err := crypto.NewTokenService(testSecret)
	require.NoError(t, err)
	codes, err := crypto.NewCodeGenerator(testSecret)
	require.NoError(t, err)
	svc := service.NewAuthService(repository.NewMemoryUserRepository(), tokens, codes)

	limiter := middleware.NewRateLimiter(0.001, 1)
	t.Cleanup(limiter.Stop)
	h := NewRouter(RouterConfig{
		Auth:        svc,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		RateLimiter: limiter,
	})

	post := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString(`{}`))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusBadRequest, post())
	assert.Equal(t, http.StatusTooManyRequests, post())
}
