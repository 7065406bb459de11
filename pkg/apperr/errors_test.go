package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"validation", Validation("bucket %q not allowed", "x"), http.StatusBadRequest},
		{"unsupported media", UnsupportedMedia("cannot decode", cause), http.StatusUnsupportedMediaType},
		{"not found", NotFound("missing", cause), http.StatusNotFound},
		{"dependency", Dependency("qdrant down", cause), http.StatusBadGateway},
		{"wrapped dependency", fmt.Errorf("ingest: %w", Dependency("embed", cause)), http.StatusBadGateway},
		{"unknown", cause, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Dependency("embedding request failed", cause)

	assert.ErrorIs(t, err, ErrDependencyUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "embedding request failed: connection refused", err.Error())
	assert.True(t, IsValidation(UnsupportedMedia("bad image", nil)))
	assert.False(t, IsValidation(err))
}

func TestPublicMessage(t *testing.T) {
	assert.Equal(t, "internal server error", PublicMessage(errors.New("secret detail")))
	assert.Equal(t, "embedding request failed", PublicMessage(Dependency("embedding request failed", errors.New("dial tcp 10.0.0.1"))))
	assert.Equal(t, "top_k must be positive", PublicMessage(Validation("top_k must be positive")))
	assert.Equal(t, "object not found", PublicMessage(NotFound("object not found", errors.New("NoSuchKey: uploads/a.png"))))
	assert.Equal(t, "invalid image", PublicMessage(UnsupportedMedia("invalid image", errors.New("png: bad header"))))
	assert.Equal(t, "invalid request", PublicMessage(fmt.Errorf("handler: %w", Wrap(ErrValidation, "invalid request", errors.New("decoder detail")))))
}
