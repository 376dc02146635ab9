// Package clientip resolves the address a request should be attributed to.
// X-Forwarded-For is only believed when it was appended by a trusted proxy.
package clientip

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// Header is the forwarding header read and written by the server.
const Header = "X-Forwarded-For"

// DefaultTrusted covers the storefront calling its own API over loopback.
var DefaultTrusted = []string{"127.0.0.0/8", "::1/128"}

// Resolver maps a request to a client address.
type Resolver struct {
	trusted []netip.Prefix
}

// NewResolver trusts the given CIDRs. A bare IP is trusted on its own.
func NewResolver(cidrs []string) (*Resolver, error) {
	r := &Resolver{}
	for _, c := range cidrs {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if !strings.Contains(c, "/") {
			addr, err := netip.ParseAddr(c)
			if err != nil {
				return nil, fmt.Errorf("parsing trusted proxy %q: %w", c, err)
			}
			r.trusted = append(r.trusted, netip.PrefixFrom(addr.Unmap(), addr.Unmap().BitLen()))
			continue
		}
		p, err := netip.ParsePrefix(c)
		if err != nil {
			return nil, fmt.Errorf("parsing trusted proxy %q: %w", c, err)
		}
		r.trusted = append(r.trusted, p.Masked())
	}
	return r, nil
}

// Loopback returns a Resolver trusting only DefaultTrusted.
func Loopback() *Resolver {
	r, err := NewResolver(DefaultTrusted)
	if err != nil {
		panic(err)
	}
	return r
}

// Resolve returns the peer address unless the peer is a trusted proxy. Then
// it walks X-Forwarded-For from the right and returns the first hop not
// trusted. Hops left of that are client supplied and ignored. A malformed
// hop ends the walk at the last good address.
func (r *Resolver) Resolve(req *http.Request) string {
	peer := peerAddr(req.RemoteAddr)
	if !peer.IsValid() {
		return req.RemoteAddr
	}
	if !r.Trusted(peer) {
		return peer.String()
	}

	client := peer
	hops := forwardedHops(req.Header.Values(Header))
	for i := len(hops) - 1; i >= 0; i-- {
		addr, err := netip.ParseAddr(hops[i])
		if err != nil {
			break
		}
		client = addr.Unmap()
		if !r.Trusted(client) {
			break
		}
	}
	return client.String()
}

// Trusted reports whether addr belongs to a trusted proxy.
func (r *Resolver) Trusted(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, p := range r.trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func peerAddr(remote string) netip.Addr {
	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		host = remote
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}
	}
	return addr.Unmap()
}

func forwardedHops(values []string) []string {
	var hops []string
	for _, v := range values {
		for _, h := range strings.Split(v, ",") {
			if h = strings.TrimSpace(h); h != "" {
				hops = append(hops, h)
			}
		}
	}
	return hops
}
