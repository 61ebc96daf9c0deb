package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/sharebite/auth-service/internal/metrics"
	"github.com/sharebite/auth-service/internal/models"
	"github.com/sharebite/auth-service/internal/service"
)

// =============================================================================
// Mock Implementations
// =============================================================================

type mockAuthService struct {
	registerFunc       func(ctx context.Context, req service.RegisterRequest) (*models.PublicUser, error)
	loginFunc          func(ctx context.Context, usernameOrEmail, password string) (*service.LoginResponse, error)
	changePasswordFunc func(ctx context.Context, userID, current, next string) error
	deleteAccountFunc  func(ctx context.Context, userID string) error
}

var errNotImplemented = errors.New("not implemented")

func (m *mockAuthService) Register(ctx context.Context, req service.RegisterRequest) (*models.PublicUser, error) {
	if m.registerFunc != nil {
		return m.registerFunc(ctx, req)
	}
	return nil, errNotImplemented
}

func (m *mockAuthService) Login(ctx context.Context, usernameOrEmail, password string) (*service.LoginResponse, error) {
	if m.loginFunc != nil {
		return m.loginFunc(ctx, usernameOrEmail, password)
	}
	return nil, errNotImplemented
}

func (m *mockAuthService) ChangePassword(ctx context.Context, userID, current, next string) error {
	if m.changePasswordFunc != nil {
		return m.changePasswordFunc(ctx, userID, current, next)
	}
	return errNotImplemented
}

func (m *mockAuthService) DeleteAccount(ctx context.Context, userID string) error {
	if m.deleteAccountFunc != nil {
		return m.deleteAccountFunc(ctx, userID)
	}
	return errNotImplemented
}

// =============================================================================
// Test Helpers
// =============================================================================

func createTestContext(method, path string, body interface{}) (*httptest.ResponseRecorder, *gin.Context) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var bodyBytes []byte
	switch b := body.(type) {
	case nil:
	case string:
		bodyBytes = []byte(b)
	default:
		bodyBytes, _ = json.Marshal(body)
	}

	c.Request = httptest.NewRequest(method, path, bytes.NewReader(bodyBytes))
	c.Request.Header.Set("Content-Type", "application/json")
	return w, c
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response %q: %v", w.Body.String(), err)
	}
	return resp
}

// =============================================================================
// Register Handler Tests
// =============================================================================

func TestRegister_Success(t *testing.T) {
	var got service.RegisterRequest
	mockService := &mockAuthService{
		registerFunc: func(_ context.Context, req service.RegisterRequest) (*models.PublicUser, error) {
			got = req
			return &models.PublicUser{ID: "u1", Username: req.Username, Email: req.Email}, nil
		},
	}
	m := metrics.New(prometheus.NewRegistry())
	handler := NewAuthHandler(mockService, m, nil)

	w, c := createTestContext(http.MethodPost, "/api/auth/register", map[string]string{
		"username": "alice",
		"email":    "alice@x.com",
		"password": "secret1",
	})
	handler.Register(c)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d", http.StatusCreated, w.Code)
	}
	if got.Username != "alice" || got.Email != "alice@x.com" || got.Password != "secret1" {
		t.Errorf("service received %+v", got)
	}

	var resp RegisterResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.User == nil || resp.User.ID != "u1" {
		t.Errorf("user = %+v, want id u1", resp.User)
	}
	if resp.Message == "" {
		t.Error("expected a message")
	}
	if bytes.Contains(w.Body.Bytes(), []byte("password")) {
		t.Errorf("response leaks a password field: %s", w.Body.String())
	}

	if v := testutil.ToFloat64(m.AuthEvents.WithLabelValues("register", metrics.OutcomeSuccess)); v != 1 {
		t.Errorf("register success events = %v, want 1", v)
	}
}

func TestRegister_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       interface{}
		err        error
		wantStatus int
		wantFields int
	}{
		{"malformed json", "{", nil, http.StatusBadRequest, 0},
		{"validation", map[string]string{}, &service.ValidationError{Fields: []service.FieldError{
			{Field: "username", Message: "username must be at least 3 characters"},
			{Field: "email", Message: "email is not valid"},
		}}, http.StatusBadRequest, 2},
		{"conflict", map[string]string{}, errors.Join(service.ErrConflict, errors.New("pq detail")), http.StatusConflict, 0},
		{"unavailable", map[string]string{}, service.ErrUnavailable, http.StatusServiceUnavailable, 0},
		{"internal", map[string]string{}, errors.New("disk on fire"), http.StatusInternalServerError, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := &mockAuthService{
				registerFunc: func(context.Context, service.RegisterRequest) (*models.PublicUser, error) {
					return nil, tt.err
				},
			}
			handler := NewAuthHandler(mockService, nil, nil)

			w, c := createTestContext(http.MethodPost, "/api/auth/register", tt.body)
			handler.Register(c)

			if w.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
			resp := decodeError(t, w)
			if resp.Message == "" {
				t.Error("expected an error message")
			}
			if len(resp.Errors) != tt.wantFields {
				t.Errorf("field errors = %d, want %d", len(resp.Errors), tt.wantFields)
			}
			if bytes.Contains(w.Body.Bytes(), []byte("pq detail")) || bytes.Contains(w.Body.Bytes(), []byte("disk on fire")) {
				t.Errorf("internal detail leaked: %s", w.Body.String())
			}
		})
	}
}

// =============================================================================
// Login Handler Tests
// =============================================================================

func TestLogin_Success(t *testing.T) {
	mockService := &mockAuthService{
		loginFunc: func(_ context.Context, usernameOrEmail, password string) (*service.LoginResponse, error) {
			if usernameOrEmail != "alice" || password != "secret1" {
				t.Errorf("Login(%q, %q)", usernameOrEmail, password)
			}
			return &service.LoginResponse{
				Token: "token_123",
				User: &models.SessionUser{
					PublicUser: models.PublicUser{ID: "u1", Username: "alice", Email: "alice@x.com"},
				},
			}, nil
		},
	}
	handler := NewAuthHandler(mockService, nil, nil)

	w, c := createTestContext(http.MethodPost, "/api/auth/login", service.LoginRequest{
		UsernameOrEmail: "alice",
		Password:        "secret1",
	})
	handler.Login(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body["token"] != "token_123" {
		t.Errorf("token = %v, want token_123", body["token"])
	}
	user, _ := body["user"].(map[string]any)
	for _, key := range []string{"id", "username", "email", "avatar"} {
		if _, ok := user[key]; !ok {
			t.Errorf("user is missing %q: %v", key, user)
		}
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	mockService := &mockAuthService{
		loginFunc: func(context.Context, string, string) (*service.LoginResponse, error) {
			return nil, service.ErrInvalidCredentials
		},
	}
	m := metrics.New(prometheus.NewRegistry())
	handler := NewAuthHandler(mockService, m, nil)

	w, c := createTestContext(http.MethodPost, "/api/auth/login", service.LoginRequest{
		UsernameOrEmail: "alice",
		Password:        "wrong",
	})
	handler.Login(c)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}
	if resp := decodeError(t, w); resp.Message != "invalid credentials" {
		t.Errorf("message = %q, want invalid credentials", resp.Message)
	}
	if v := testutil.ToFloat64(m.AuthEvents.WithLabelValues("login", metrics.OutcomeFailure)); v != 1 {
		t.Errorf("login failure events = %v, want 1", v)
	}
}

func TestLogin_MalformedBody(t *testing.T) {
	handler := NewAuthHandler(&mockAuthService{}, nil, nil)

	w, c := createTestContext(http.MethodPost, "/api/auth/login", "not json")
	handler.Login(c)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
}
