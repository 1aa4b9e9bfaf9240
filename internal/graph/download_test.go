package graph

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownload_PreAuthenticatedURL(t *testing.T) {
	payload := "flash file bytes"

	content := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"), "pre-authenticated URLs must not carry the bearer token")
		io.WriteString(w, payload)
	}))
	t.Cleanup(content.Close)

	c := NewClient("http://unused", content.Client(), nil, staticToken("tok"), testLogger())

	rc, err := c.Download(context.Background(), Entry{
		Name:        "alpha.fls",
		DownloadURL: content.URL + "/blob/alpha",
	})
	require.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, payload, string(got))
}

func TestDownload_ContentProbeFollowsLocation(t *testing.T) {
	payload := "probed bytes"

	content := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		io.WriteString(w, payload)
	}))
	t.Cleanup(content.Close)

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/drives/d1/items/i1/content", r.URL.Path)
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))

		w.Header().Set("Location", content.URL+"/blob/i1")
		w.WriteHeader(http.StatusFound)
	})

	rc, err := c.Download(context.Background(), Entry{
		ID:      "i1",
		Name:    "beta.fls",
		DriveID: "d1",
	})
	require.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, payload, string(got))
}

func TestDownload_ProbeWithoutLocationFails(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusFound)
	})

	_, err := c.Download(context.Background(), Entry{ID: "i1", Name: "x.fls", DriveID: "d1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Location")
}

func TestDownload_NotFound(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "itemNotFound", http.StatusNotFound)
	})

	_, err := c.Download(context.Background(), Entry{ID: "gone", Name: "gone.fls", DriveID: "d1"})
	assert.ErrorIs(t, err, ErrNotFound)
}
