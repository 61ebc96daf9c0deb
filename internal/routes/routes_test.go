package routes_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sharebite/auth-service/internal/handlers"
	"github.com/sharebite/auth-service/internal/metrics"
	"github.com/sharebite/auth-service/internal/middleware"
	"github.com/sharebite/auth-service/internal/repository"
	"github.com/sharebite/auth-service/internal/routes"
	"github.com/sharebite/auth-service/internal/service"
	"github.com/sharebite/auth-service/internal/storage"
)

const testSecret = "routes-test-secret-at-least-32-bytes"

type testServer struct {
	router    *gin.Engine
	uploadDir string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := repository.NewMemoryUserRepository()
	hasher, err := service.NewPasswordHasher(service.AlgorithmBcrypt, bcrypt.MinCost)
	require.NoError(t, err)
	tokens, err := service.NewJWTService(testSecret)
	require.NoError(t, err)

	uploadDir := t.TempDir()
	avatars, err := storage.NewLocalStore(uploadDir)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	authService := service.NewAuthService(repo, hasher, tokens, service.WithAvatarStore(avatars))
	profiles := service.NewProfileService(repo, service.WithAvatarStore(avatars))

	router := gin.New()
	routes.Setup(router, routes.Handlers{
		Auth:   handlers.NewAuthHandler(authService, m, nil),
		User:   handlers.NewUserHandler(profiles, authService, 0, m, nil),
		Health: handlers.NewHealthHandler(nil),
	}, routes.Options{
		AllowedOrigins: []string{"http://localhost:3000"},
		Gate:           middleware.RequireAuth(tokens, nil),
		Metrics:        m,
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		UploadDir:      uploadDir,
	})

	return &testServer{router: router, uploadDir: uploadDir}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) login(t *testing.T, identifier, password string) (*httptest.ResponseRecorder, string) {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"usernameOrEmail": identifier,
		"password":        password,
	})
	if w.Code != http.StatusOK {
		return w, ""
	}
	var resp service.LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp.Token
}

func TestAccountLifecycle(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "alice",
		"email":    "alice@x.com",
		"password": "secret1",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "user registered successfully")

	w, token := srv.login(t, "alice", "secret1")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NotEmpty(t, token)

	w = srv.do(t, http.MethodGet, "/api/user/profile", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"username":"alice"`)
	assert.NotContains(t, strings.ToLower(w.Body.String()), "password")

	w = srv.do(t, http.MethodPut, "/api/user/change-password", token, map[string]string{
		"currentPassword": "wrong",
		"newPassword":     "secret2",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = srv.do(t, http.MethodPut, "/api/user/change-password", token, map[string]string{
		"currentPassword": "secret1",
		"newPassword":     "secret2",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, _ = srv.login(t, "alice", "secret1")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, token = srv.login(t, "alice@x.com", "secret2")
	require.Equal(t, http.StatusOK, w.Code)

	w = srv.do(t, http.MethodDelete, "/api/user", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = srv.login(t, "alice", "secret2")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = srv.do(t, http.MethodGet, "/api/user/profile", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAliases(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"username": "bob",
		"email":    "bob@x.com",
		"password": "hunter2",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = srv.do(t, http.MethodPost, "/api/auth/signin", "", map[string]string{
		"usernameOrEmail": "BOB@X.COM",
		"password":        "hunter2",
	})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	srv := newTestServer(t)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/user/profile"},
		{http.MethodPut, "/api/user/profile"},
		{http.MethodPost, "/api/user/avatar"},
		{http.MethodPut, "/api/user/change-password"},
		{http.MethodDelete, "/api/user/account"},
		{http.MethodDelete, "/api/user"},
	}

	for _, p := range paths {
		t.Run(p.method+" "+p.path, func(t *testing.T) {
			w := srv.do(t, p.method, p.path, "", nil)
			assert.Equal(t, http.StatusUnauthorized, w.Code)

			w = srv.do(t, p.method, p.path, "garbage", nil)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestAvatarUploadIsServed(t *testing.T) {
	srv := newTestServer(t)

	srv.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "carol",
		"email":    "carol@x.com",
		"password": "secret1",
	})
	_, token := srv.login(t, "carol", "secret1")
	require.NotEmpty(t, token)

	image := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{7}, 100)...)
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("avatar", "me.png")
	require.NoError(t, err)
	_, err = part.Write(image)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/user/avatar", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp handlers.UserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, strings.HasPrefix(resp.User.Avatar, storage.DefaultURLPrefix))

	stored, err := os.ReadFile(filepath.Join(srv.uploadDir, strings.TrimPrefix(resp.User.Avatar, storage.DefaultURLPrefix)))
	require.NoError(t, err)
	assert.Equal(t, image, stored)

	w = srv.do(t, http.MethodGet, resp.User.Avatar, "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = srv.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "auth_service_http_requests_total")
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}
