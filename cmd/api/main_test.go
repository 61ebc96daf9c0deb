package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharebite/auth-service/internal/config"
)

const testSecret = "cmd-test-secret-at-least-32-bytes-long"

func memoryConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Port:           "0",
		Environment:    "development",
		DBDriver:       config.DriverMemory,
		JWTSecret:      testSecret,
		BcryptCost:     4,
		AvatarStorage:  config.StorageLocal,
		UploadDir:      t.TempDir(),
		AvatarMaxBytes: 1 << 20,
		AllowedOrigins: "http://localhost:3000",
	}
}

func TestRootCmd_Subcommands(t *testing.T) {
	cmd := NewRootCmd()

	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	assert.True(t, names["serve"])
	assert.True(t, names["migrate"])
	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))
}

func TestServe_RejectsMissingSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DB_DRIVER", "memory")

	cmd := NewRootCmd()
	cmd.SetArgs([]string{"serve"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestMigrate_RequiresPostgres(t *testing.T) {
	cmd := NewRootCmd()
	cmd.SetArgs([]string{"migrate", "--db-driver", "memory"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres")
}

func TestNewApp_Memory(t *testing.T) {
	a, err := newApp(context.Background(), memoryConfig(t), slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(a.close)

	w := httptest.NewRecorder()
	a.server.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "database")

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register",
		bytes.NewBufferString(`{"username":"alice","email":"alice@x.com","password":"secret1"}`))
	req.Header.Set("Content-Type", "application/json")
	a.server.Handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = httptest.NewRecorder()
	a.server.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestNewApp_WithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	host, port, err := net.SplitHostPort(mr.Addr())
	require.NoError(t, err)

	cfg := memoryConfig(t)
	cfg.RedisHost = host
	cfg.RedisPort = port
	cfg.AvatarStorage = config.StorageDisabled

	a, err := newApp(context.Background(), cfg, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(a.close)

	w := httptest.NewRecorder()
	a.server.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "redis")

	mr.Close()
	w = httptest.NewRecorder()
	a.server.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestNewApp_RedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	host, port, err := net.SplitHostPort(mr.Addr())
	require.NoError(t, err)
	mr.Close()

	cfg := memoryConfig(t)
	cfg.RedisHost = host
	cfg.RedisPort = port

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	_, err = newApp(ctx, cfg, slog.New(slog.DiscardHandler))
	assert.Error(t, err)
}

func TestApp_RunStopsOnCancel(t *testing.T) {
	a, err := newApp(context.Background(), memoryConfig(t), slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(a.close)
	a.server.Addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.run(ctx) }()

	cancel()
	assert.NoError(t, <-done)
}
