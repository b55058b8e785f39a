package security

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// defaultHeaderPriority is the ordered list of headers inspected when the
// caller does not provide an explicit HeaderPriority.
var defaultHeaderPriority = []string{"X-Real-IP", "X-Forwarded-For"}

// ClientIPResolver determines the effective client address of a request.
type ClientIPResolver struct {
	trustedProxies []netip.Prefix
	headerPriority []string
}

// NewClientIPResolver creates a resolver. Forwarding headers are honoured
// only when the direct peer is one of trustedProxies.
func NewClientIPResolver(trustedProxies, headerPriority []string) (*ClientIPResolver, error) {
	proxies, err := parsePrefixes(trustedProxies)
	if err != nil {
		return nil, fmt.Errorf("security: invalid trusted proxy: %w", err)
	}
	if len(headerPriority) == 0 {
		headerPriority = defaultHeaderPriority
	}
	return &ClientIPResolver{trustedProxies: proxies, headerPriority: headerPriority}, nil
}

// Resolve returns the client address for r.
//
// It starts from r.RemoteAddr. If that peer is a trusted proxy, the
// configured headers are walked in order and the first valid IP found is
// returned. Otherwise (or when no valid header IP is found) the peer
// address itself is returned.
func (c *ClientIPResolver) Resolve(r *http.Request) (netip.Addr, bool) {
	peerAddr, ok := parseHostPort(r.RemoteAddr)
	if !ok {
		return netip.Addr{}, false
	}

	if matchesAny(peerAddr, c.trustedProxies) {
		if addr, found := addrFromHeaders(r.Header, c.headerPriority); found {
			return addr, true
		}
	}

	return peerAddr, true
}

// Key returns the client address as a string, or "unknown" when it cannot
// be determined.
func (c *ClientIPResolver) Key(r *http.Request) string {
	if addr, ok := c.Resolve(r); ok {
		return addr.String()
	}
	return "unknown"
}

// parseHostPort parses "host:port" or a bare host into an address.
func parseHostPort(s string) (netip.Addr, bool) {
	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}
	ip, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, false
	}
	return ip.Unmap(), true
}

// addrFromHeaders walks the header keys in priority order and returns the
// first valid IP address found.  For multi-value headers such as
// X-Forwarded-For the left-most (client) entry is used.
func addrFromHeaders(h http.Header, priority []string) (netip.Addr, bool) {
	for _, key := range priority {
		for _, v := range h.Values(key) {
			for part := range strings.SplitSeq(v, ",") {
				trimmed := strings.TrimSpace(part)
				if trimmed == "" {
					continue
				}
				if ip, err := netip.ParseAddr(trimmed); err == nil {
					return ip.Unmap(), true
				}
			}
		}
	}
	return netip.Addr{}, false
}
