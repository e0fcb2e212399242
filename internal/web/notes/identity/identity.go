// Package identity resolves the best-effort caller identifier used for
// like membership and delete ownership.
//
// The identifier is read from reverse-proxy headers and is never verified.
package identity

import (
	"net"
	"net/http"
	"strings"
)

const (
	HeaderForwardedFor = "X-Forwarded-For"
	HeaderRealIP       = "X-Real-IP"

	// unresolved is the placeholder some proxies send when they
	// could not determine the client address.
	unresolved = "unknown"
)

// Resolver returns the caller identifier of a request.
// ok is false when no identifier could be resolved.
type Resolver interface {
	Resolve(r *http.Request) (id string, ok bool)
}

// HeaderResolver reads X-Forwarded-For then X-Real-IP.
type HeaderResolver struct {
	// TrustRemoteAddr falls back to the TCP peer address when no header is set.
	TrustRemoteAddr bool
}

// NewHeaderResolver returns a header based Resolver.
func NewHeaderResolver(trustRemoteAddr bool) *HeaderResolver {
	return &HeaderResolver{TrustRemoteAddr: trustRemoteAddr}
}

// Resolve implements Resolver.
func (h *HeaderResolver) Resolve(r *http.Request) (string, bool) {
	if r == nil {
		return "", false
	}
	if id, ok := FromHeader(r.Header); ok {
		return id, true
	}
	if !h.TrustRemoteAddr {
		return "", false
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		host = strings.TrimSpace(r.RemoteAddr)
	}
	return normalize(host)
}

// FromHeader takes the first X-Forwarded-For entry, else X-Real-IP.
func FromHeader(header http.Header) (string, bool) {
	if header == nil {
		return "", false
	}

	if fwd := header.Get(HeaderForwardedFor); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if id, ok := normalize(first); ok {
			return id, true
		}
	}

	return normalize(header.Get(HeaderRealIP))
}

func normalize(v string) (string, bool) {
	v = strings.TrimSpace(v)
	if v == "" || strings.EqualFold(v, unresolved) {
		return "", false
	}
	return v, true
}
