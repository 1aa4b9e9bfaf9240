package graph

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staticToken is a TokenSource returning a fixed token.
type staticToken string

func (s staticToken) Token(context.Context) (string, error) {
	return string(s), nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(srv.URL, srv.Client(), nil, staticToken("tok-123"), testLogger()), srv
}

func TestDo_SetsAuthAndUserAgent(t *testing.T) {
	var gotAuth, gotUA string

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte(`{}`))
	})

	resp, err := c.Do(context.Background(), "GET", "/me/drive", nil)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "Bearer tok-123", gotAuth)
	assert.Equal(t, userAgent, gotUA)
}

func TestDo_401BecomesAuthError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "token expired", http.StatusUnauthorized)
	})

	_, err := c.Do(context.Background(), "GET", "/me/drive", nil)

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Contains(t, authErr.Description, "token expired")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestDo_StatusClassification(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusBadRequest, ErrBadRequest},
		{http.StatusForbidden, ErrForbidden},
		{http.StatusNotFound, ErrNotFound},
		{http.StatusGone, ErrGone},
		{http.StatusTooManyRequests, ErrThrottled},
		{http.StatusInternalServerError, ErrServerError},
		{http.StatusServiceUnavailable, ErrServerError},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("request-id", "req-42")
				http.Error(w, "nope", tt.status)
			})

			_, err := c.Do(context.Background(), "GET", "/x", nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, "req-42", apiErr.RequestID)
		})
	}
}

func TestDo_NoRetryOnServerError(t *testing.T) {
	var calls int

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := c.Do(context.Background(), "GET", "/x", nil)
	require.Error(t, err)
	assert.Equal(t, 1, calls, "a failed request must not be retried")
}

func TestDo_NoRetryOnThrottle(t *testing.T) {
	var calls int

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Retry-After", "1")
		http.Error(w, "slow down", http.StatusTooManyRequests)
	})

	_, err := c.Do(context.Background(), "GET", "/x", nil)
	assert.ErrorIs(t, err, ErrThrottled)
	assert.Equal(t, 1, calls)
}

func TestStripBaseURL(t *testing.T) {
	c := NewClient("https://graph.example.com/v1.0", nil, nil, staticToken("t"), testLogger())

	path, err := c.stripBaseURL("https://graph.example.com/v1.0/drives/d/items/i/delta?token=abc")
	require.NoError(t, err)
	assert.Equal(t, "/drives/d/items/i/delta?token=abc", path)

	_, err = c.stripBaseURL("https://elsewhere.example.com/foo")
	assert.Error(t, err)
}

func TestClassifyStatus_SuccessIsNil(t *testing.T) {
	assert.NoError(t, classifyStatus(http.StatusOK))
	assert.NoError(t, classifyStatus(http.StatusNoContent))
}

func TestAuthError_Unwrap(t *testing.T) {
	err := error(&AuthError{Description: "bad"})
	assert.True(t, errors.Is(err, ErrUnauthorized))
}

func TestProbe(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/me", r.URL.Path)
		w.Write([]byte(`{"id": "user-1"}`))
	})

	assert.NoError(t, c.Probe(context.Background()))
}

func TestProbe_Unauthorized(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "expired", http.StatusUnauthorized)
	})

	err := c.Probe(context.Background())
	assert.ErrorIs(t, err, ErrUnauthorized)
}
