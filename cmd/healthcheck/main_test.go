package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbe(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr string
	}{
		{name: "ready", status: http.StatusOK},
		{name: "not ready", status: http.StatusServiceUnavailable, wantErr: "status 503"},
		{name: "not found", status: http.StatusNotFound, wantErr: "status 404"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/readyz", r.URL.Path)
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			err := probe(context.Background(), srv.Client(), srv.URL+"/readyz")
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestProbe_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := probe(context.Background(), http.DefaultClient, url+"/readyz")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "do request")
}

func TestDefaultAddr(t *testing.T) {
	t.Setenv("PORT", "")
	assert.Equal(t, "127.0.0.1:8080", defaultAddr())

	t.Setenv("PORT", "9090")
	assert.Equal(t, "127.0.0.1:9090", defaultAddr())
}
