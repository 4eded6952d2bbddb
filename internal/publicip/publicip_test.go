package publicip

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExternalHostPrefersDomain(t *testing.T) {
	r := NewResolverWithEcho("http://127.0.0.1:1") // must never be contacted
	host, err := r.ExternalHost(context.Background(), "media.example.org")
	require.NoError(t, err)
	assert.Equal(t, "media.example.org", host)
}

func TestExternalHostEchoLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("203.0.113.9\n"))
	}))
	defer srv.Close()

	r := NewResolverWithEcho(srv.URL)
	host, err := r.ExternalHost(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.9", host)
}

func TestExternalHostBadEcho(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "not an ip",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("<html>blocked</html>"))
			},
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := NewResolverWithEcho(srv.URL).ExternalHost(context.Background(), "")
			assert.Error(t, err)
		})
	}
}
