// Package storage keeps uploaded avatar images outside the user database.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrForeignReference is returned when asked to delete a reference the
// store did not produce.
var ErrForeignReference = errors.New("reference does not belong to this store")

// AvatarStore saves avatar images and hands back a public reference
// (URL or path) that clients can load directly.
type AvatarStore interface {
	// Save stores the image read from r. ext includes the leading dot.
	Save(ctx context.Context, ext, contentType string, r io.Reader) (string, error)
	// Delete removes the asset behind ref. Missing assets are not an error.
	Delete(ctx context.Context, ref string) error
}
