package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sharebite/auth-service/internal/storage"
)

// DefaultOperationTimeout bounds each store round trip and hash computation.
const DefaultOperationTimeout = 5 * time.Second

type options struct {
	logger      *slog.Logger
	timeout     time.Duration
	revocations RevocationStore
	avatars     storage.AvatarStore
	avatarLimit int64
}

// Option configures AuthService and ProfileService.
type Option func(*options)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithTimeout sets the per-operation timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithRevocationStore enables token revocation on password change and
// account deletion.
func WithRevocationStore(store RevocationStore) Option {
	return func(o *options) {
		o.revocations = store
	}
}

// WithAvatarStore sets where avatar images are kept.
func WithAvatarStore(store storage.AvatarStore) Option {
	return func(o *options) {
		o.avatars = store
	}
}

// WithAvatarLimit sets the largest accepted avatar upload, in bytes.
func WithAvatarLimit(n int64) Option {
	return func(o *options) {
		if n > 0 {
			o.avatarLimit = n
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		logger:      slog.New(slog.DiscardHandler),
		timeout:     DefaultOperationTimeout,
		avatarLimit: DefaultAvatarLimit,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.timeout)
}

// runBounded runs fn on its own goroutine so CPU-bound work such as password
// hashing cannot outlive ctx from the caller's point of view.
func runBounded[T any](ctx context.Context, fn func() T) (T, error) {
	done := make(chan T, 1)
	go func() {
		done <- fn()
	}()

	select {
	case v := <-done:
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, errors.Join(ErrUnavailable, ctx.Err())
	}
}
