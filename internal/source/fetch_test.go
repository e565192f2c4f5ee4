package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetch_CachesAndRevalidates(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte("<html>page</html>"))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir())

	body, cached, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, "<html>page</html>", string(body))

	// Second fetch revalidates with the stored ETag and gets a 304.
	body, cached, err = f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, "<html>page</html>", string(body))
	assert.Equal(t, 2, hits)
}

func TestFetch_FallsBackToCacheOnServerError(t *testing.T) {
	var fail bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("good body"))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir())

	_, _, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)

	fail = true
	body, cached, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, "good body", string(body))
}

func TestFetch_ErrorWithoutCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir())

	_, _, err := f.Fetch(context.Background(), srv.URL)
	assert.Error(t, err)
}

func TestFetch_EmptyURL(t *testing.T) {
	f := NewFetcher(t.TempDir())
	_, _, err := f.Fetch(context.Background(), "")
	assert.Error(t, err)
}
