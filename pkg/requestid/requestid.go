// Package requestid carries the per-request correlation identifier through a
// context.Context.
package requestid

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// Header is the HTTP header used to receive and propagate correlation ids.
const Header = "X-Request-ID"

type ctxKey struct{}

// NewContext returns a copy of ctx carrying id.
func NewContext(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the correlation id stored in ctx, or "".
func FromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// Resolve trims a caller-supplied id and generates a new one when it is empty.
func Resolve(incoming string) string {
	if id := strings.TrimSpace(incoming); id != "" {
		return id
	}
	return uuid.NewString()
}

// Ensure returns ctx unchanged if it already carries an id, otherwise a
// context with a freshly generated one.
func Ensure(ctx context.Context) context.Context {
	if FromContext(ctx) != "" {
		return ctx
	}
	return NewContext(ctx, uuid.NewString())
}
