package gates

import (
	"strings"

	"github.com/dmitrymomot/conduit/internal"
)

// Host admits requests whose Host header matches one of the patterns.
// A pattern is an exact host ("api.example.com") or a wildcard for one or
// more subdomain levels ("*.example.com"). Ports are ignored and matching
// is case-insensitive. Other hosts are answered with 404.
func Host(patterns ...string) internal.Gate {
	exact := make(map[string]struct{})
	var wildcard []string
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		switch {
		case p == "":
		case strings.HasPrefix(p, "*."):
			wildcard = append(wildcard, p[1:])
		default:
			exact[p] = struct{}{}
		}
	}

	return internal.GateFunc(func(c internal.Context) bool {
		host := Domain(c)
		if _, ok := exact[host]; ok {
			return true
		}
		for _, suffix := range wildcard {
			if strings.HasSuffix(host, suffix) {
				return true
			}
		}
		c.Respond(nil, internal.ErrNotFound("not found"))
		return false
	})
}

// Domain returns the request host without port, lowercased. IPv6 hosts
// keep their brackets.
func Domain(c internal.Context) string {
	host := c.Request().Host
	if i := strings.LastIndex(host, ":"); i != -1 && !strings.Contains(host[i:], "]") {
		host = host[:i]
	}
	return strings.ToLower(host)
}

// Subdomain returns the part of the host in front of base, or "" when the
// host is base itself or outside it.
//
//	Subdomain(c, "example.com") // Host "acme.example.com:8080" -> "acme"
func Subdomain(c internal.Context, base string) string {
	host, suffix := Domain(c), "."+strings.ToLower(base)
	if !strings.HasSuffix(host, suffix) {
		return ""
	}
	return strings.TrimSuffix(host, suffix)
}
