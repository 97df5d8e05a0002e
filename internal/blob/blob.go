// Package blob provides opaque byte storage for device attachments.
// The store is addressed by locator only; nothing in this package
// inspects file contents.
package blob

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a locator resolves to nothing.
var ErrNotFound = errors.New("blob not found")

// Store is the attachment byte sink. Put returns the locator under
// which the bytes are retrievable; metadata must only reference a
// locator after Put has returned.
type Store interface {
	Put(ctx context.Context, key string, data []byte) (locator string, err error)
	Get(ctx context.Context, locator string) ([]byte, error)
}
