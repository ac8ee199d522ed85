package httppage

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/gallery-service/internal/repository"
)

func TestPageLoaderOpenAndSnapshot(t *testing.T) {
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/gallery", http.StatusFound)
	})
	mux.HandleFunc("/gallery", func(w http.ResponseWriter, r *http.Request) {
		n := hits.Add(1)
		fmt.Fprintf(w, `<html><body><img src="img%d.png"></body></html>`, n)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	loader := NewPageLoader(nil, nil)
	session, err := loader.Open(context.Background(), srv.URL+"/start")
	require.NoError(t, err)
	defer session.Close()

	assert.Equal(t, srv.URL+"/gallery", session.URL())

	first, err := session.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Contains(t, first.HTML, "img1.png")
	assert.Equal(t, int32(1), hits.Load())

	second, err := session.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Contains(t, second.HTML, "img2.png")
	assert.Equal(t, srv.URL+"/gallery", second.URL)
}

func TestPageLoaderCannotScroll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html></html>"))
	}))
	defer srv.Close()

	session, err := NewPageLoader(nil, nil).Open(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.ErrorIs(t, session.ScrollBy(context.Background(), 300), repository.ErrScrollUnsupported)
	assert.ErrorIs(t, session.ScrollToTop(context.Background()), repository.ErrScrollUnsupported)
}

func TestPageLoaderOpenFails(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := NewPageLoader(nil, nil).Open(context.Background(), srv.URL+"/nope")
	assert.ErrorContains(t, err, "unexpected status 404")
}
