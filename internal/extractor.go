package internal

import (
	"net"
	"net/http"
	"strings"
)

// ExtractorSource extracts a value from the request context.
// Returns the value and true if found, or ("", false) if not present.
type ExtractorSource = func(Context) (string, bool)

// Extractor tries multiple sources in order and returns the first match.
type Extractor struct {
	sources []ExtractorSource
}

// NewExtractor creates an Extractor that tries the given sources in order.
func NewExtractor(sources ...ExtractorSource) Extractor {
	return Extractor{sources: sources}
}

// Extract iterates sources in order and returns the first non-empty value.
// Returns ("", false) if all sources miss.
func (e Extractor) Extract(c Context) (string, bool) {
	for _, src := range e.sources {
		if v, ok := src(c); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

func nonEmpty(v string) (string, bool) {
	return v, v != ""
}

// FromHeader returns a source that reads from a request header.
func FromHeader(name string) ExtractorSource {
	return func(c Context) (string, bool) {
		return nonEmpty(c.Header(name))
	}
}

// FromQuery returns a source that reads from a query parameter.
func FromQuery(name string) ExtractorSource {
	return func(c Context) (string, bool) {
		return nonEmpty(c.Query(name))
	}
}

// FromParam returns a source that reads from a path capture.
func FromParam(name string) ExtractorSource {
	return func(c Context) (string, bool) {
		return nonEmpty(c.Param(name))
	}
}

// FromStore returns a source that reads a string from the request store.
func FromStore(key string) ExtractorSource {
	return func(c Context) (string, bool) {
		var v string
		if !c.Get(key, &v) {
			return "", false
		}
		return nonEmpty(v)
	}
}

// FromBearerToken returns a source that reads a Bearer token from the Authorization header.
// Uses case-insensitive comparison on the "Bearer " prefix.
func FromBearerToken() ExtractorSource {
	return func(c Context) (string, bool) {
		auth := c.Header("Authorization")
		if len(auth) < 7 || !strings.EqualFold(auth[:7], "bearer ") {
			return "", false
		}
		return nonEmpty(strings.TrimSpace(auth[7:]))
	}
}

// FromRemoteIP returns a source that yields the client IP. The first
// X-Forwarded-For entry and X-Real-IP are honored before RemoteAddr.
func FromRemoteIP() ExtractorSource {
	return func(c Context) (string, bool) {
		return nonEmpty(ClientIP(c.Request()))
	}
}

// ClientIP returns the client address of r without the port.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
