package clientip

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func request(remote string, xff ...string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	req.RemoteAddr = remote
	for _, v := range xff {
		req.Header.Add(Header, v)
	}
	return req
}

func TestResolveIgnoresHeaderFromUntrustedPeer(t *testing.T) {
	r := Loopback()

	assert.Equal(t, "192.0.2.7", r.Resolve(request("192.0.2.7:1234")))
	assert.Equal(t, "192.0.2.7", r.Resolve(request("192.0.2.7:1234", "203.0.113.9")))
	assert.Equal(t, "192.0.2.7", r.Resolve(request("192.0.2.7:1234", "127.0.0.1, 10.0.0.1")))
}

func TestResolveTakesRightmostUntrustedHop(t *testing.T) {
	r, err := NewResolver([]string{"10.0.0.0/8", "127.0.0.1"})
	require.NoError(t, err)

	tests := []struct {
		name   string
		remote string
		xff    []string
		want   string
	}{
		{"no header", "10.1.2.3:80", nil, "10.1.2.3"},
		{"single hop", "10.1.2.3:80", []string{"198.51.100.4"}, "198.51.100.4"},
		{"spoofed prefix ignored", "10.1.2.3:80", []string{"1.2.3.4, 198.51.100.4"}, "198.51.100.4"},
		{"proxy chain", "127.0.0.1:80", []string{"198.51.100.4, 10.0.0.5"}, "198.51.100.4"},
		{"split headers", "10.1.2.3:80", []string{"1.2.3.4", "198.51.100.4, 10.9.9.9"}, "198.51.100.4"},
		{"all trusted", "10.1.2.3:80", []string{"10.0.0.7, 10.0.0.5"}, "10.0.0.7"},
		{"garbage stops walk", "10.1.2.3:80", []string{"198.51.100.4, not-an-ip, 10.0.0.5"}, "10.0.0.5"},
		{"mapped v4 peer", "[::ffff:10.1.2.3]:80", []string{"198.51.100.4"}, "198.51.100.4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Resolve(request(tt.remote, tt.xff...)))
		})
	}
}

func TestNewResolverRejectsBadEntries(t *testing.T) {
	_, err := NewResolver([]string{"10.0.0.0/33"})
	assert.Error(t, err)
	_, err = NewResolver([]string{"proxy.internal"})
	assert.Error(t, err)

	r, err := NewResolver([]string{" ", "::1"})
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.9", r.Resolve(request("[::1]:80", "203.0.113.9")))
}
