package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	f := New(Options{})

	require.NotNil(t, f.client)
	assert.Equal(t, defaultTimeout, f.client.Timeout)
}

func TestFetch_OK(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte("<rss/>"))
	}))
	defer server.Close()

	f := New(Options{Client: server.Client(), UserAgent: "feedwatch-test"})

	body, err := f.Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "<rss/>", string(body))
	assert.Equal(t, "feedwatch-test", gotUA)
}

func TestFetch_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	f := New(Options{Client: server.Client()})

	body, err := f.Fetch(context.Background(), server.URL)
	assert.Nil(t, body)

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr), "want *HTTPError, got %T", err)
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
	assert.Equal(t, server.URL, httpErr.URL)
	assert.Equal(t, "HTTP 404 for "+server.URL, err.Error())
}

func TestFetch_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	f := New(Options{Timeout: 50 * time.Millisecond})

	_, err := f.Fetch(context.Background(), server.URL)
	assert.Error(t, err)
}

func TestFetch_CancelledContext(t *testing.T) {
	f := New(Options{MinInterval: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Fetch(ctx, "http://127.0.0.1:0/")
	assert.ErrorIs(t, err, context.Canceled)
}
