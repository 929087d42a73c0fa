package sso

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sso/users/u-1/":
			_, _ = w.Write([]byte(`{"status":"success","data":{"id":"u-1","role":"owner"}}`))
		case "/sso/users/down/":
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	u, err := c.ResolveUser(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, &User{ID: "u-1", Role: "owner"}, u)

	_, err = c.ResolveUser(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrUnknownUser)

	_, err = c.ResolveUser(context.Background(), "down")
	assert.Error(t, err)
}
