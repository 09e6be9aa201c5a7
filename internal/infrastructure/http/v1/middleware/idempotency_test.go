package middleware

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"lotkeeper/internal/core/apperror"
	"lotkeeper/internal/infrastructure/storage/postgres"
)

type keyStore struct {
	failed   map[string]int
	released []string
}

func (s *keyStore) AcquireKey(context.Context, string, string, string, string) (*postgres.IdempotencyReplay, error) {
	return nil, nil
}

func (s *keyStore) CompleteKey(context.Context, string, int, string, []byte) error { return nil }

func (s *keyStore) FailKey(_ context.Context, key string, status int, _ string, _ []byte) error {
	s.failed[key] = status
	return nil
}

func (s *keyStore) ReleaseKey(_ context.Context, key string) error {
	s.released = append(s.released, key)
	return nil
}

func TestFailIdempotency_ReleasesRetryableFailures(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		released bool
	}{
		{"insufficient stock is final", apperror.NewInsufficientStock("m", "10", "2"), false},
		{"invalid request is final", apperror.NewInvalidRequest("bad"), false},
		{"lost race is retryable", apperror.NewConcurrencyConflict("l-1", "5", "1"), true},
		{"server fault is retryable", errors.New("db down"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &keyStore{failed: map[string]int{}}
			r := newEngine()
			r.POST("/withdraw", Idempotency(store), func(c *gin.Context) {
				_ = c.Error(tt.err)
				c.Abort()
			})

			req := httptest.NewRequest(http.MethodPost, "/withdraw", bytes.NewBufferString(`{}`))
			req.Header.Set(HeaderIdempotencyKey, "k-1")
			r.ServeHTTP(httptest.NewRecorder(), req)

			if tt.released {
				assert.Equal(t, []string{"k-1"}, store.released)
				assert.Empty(t, store.failed)
			} else {
				assert.Empty(t, store.released)
				assert.Contains(t, store.failed, "k-1")
			}
		})
	}
}
