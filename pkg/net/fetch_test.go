package net

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHTTPClient(t *testing.T) {
	c := GetHTTPClient()
	require.NotNil(t, c)
	assert.Equal(t, reqTransport, c.Transport)
}

func TestIsURL(t *testing.T) {
	assert.True(t, IsURL("https://example.com/model.yaml"))
	assert.True(t, IsURL("http://localhost:8080/m.json"))
	assert.False(t, IsURL("/tmp/model.yaml"))
	assert.False(t, IsURL("file:///tmp/model.yaml"))
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			assert.Equal(t, clientAgent, r.Header.Get("User-Agent"))
			w.Write([]byte("version: 1.0.0\n"))
		case "/big":
			w.Write([]byte(strings.Repeat("x", MaxFetchBytes+1)))
		case "/fail":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	ctx := context.Background()

	b, err := Fetch(ctx, srv.URL+"/ok")
	require.NoError(t, err)
	assert.Equal(t, "version: 1.0.0\n", string(b))

	_, err = Fetch(ctx, srv.URL+"/missing")
	assert.ErrorIs(t, err, ErrorURLNotFound)

	_, err = Fetch(ctx, srv.URL+"/fail")
	assert.Error(t, err)

	_, err = Fetch(ctx, srv.URL+"/big")
	assert.Error(t, err)
}
