package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	herrors "github.com/ashparshp/hairone/pkg/errors"
)

func fastChecker(opts ...Option) *Checker {
	return New(append([]Option{WithBackoff(time.Millisecond, 5*time.Millisecond), WithTimeout(time.Second)}, opts...)...)
}

func TestCheckReachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	assert.NoError(t, fastChecker().Check(context.Background(), srv.URL))
}

func TestCheckRetriesUntilUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("<html></html>"))
	}))
	defer srv.Close()

	require.NoError(t, fastChecker(WithRetries(3)).Check(context.Background(), srv.URL))
	assert.Equal(t, int32(3), calls.Load())
}

func TestCheckGivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := fastChecker(WithRetries(2)).Check(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, herrors.IsCode(err, herrors.ErrCodeBaseURLUnreachable), "got %v", err)
	assert.True(t, herrors.IsRetryable(err))
	assert.Equal(t, herrors.ClassEnvironment, herrors.Class(err))
	assert.Equal(t, int32(3), calls.Load())
}

func TestCheckConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := fastChecker(WithRetries(0)).Check(context.Background(), url)
	assert.True(t, herrors.IsCode(err, herrors.ErrCodeBaseURLUnreachable), "got %v", err)
}

func TestCheckInvalidURL(t *testing.T) {
	err := fastChecker().Check(context.Background(), "http://[::1")
	assert.True(t, herrors.IsCode(err, herrors.ErrCodeConfigInvalid), "got %v", err)
}
