package gates

import (
	"strings"

	"github.com/dmitrymomot/conduit/internal"
)

// Allow builds a gate from a predicate. Rejected requests are answered
// with reject, or 403 Forbidden when reject is nil.
func Allow(fn func(c internal.Context) bool, reject error) internal.Gate {
	if reject == nil {
		reject = internal.ErrForbidden("forbidden")
	}
	return internal.GateFunc(func(c internal.Context) bool {
		if fn(c) {
			return true
		}
		c.Respond(nil, reject)
		return false
	})
}

// RequireQuery rejects requests missing any of the named query parameters
// with 400.
func RequireQuery(names ...string) internal.Gate {
	return require("query parameter", names, func(c internal.Context, name string) string {
		return c.Query(name)
	})
}

// RequireHeader rejects requests missing any of the named headers with 400.
func RequireHeader(names ...string) internal.Gate {
	return require("header", names, func(c internal.Context, name string) string {
		return c.Header(name)
	})
}

func require(kind string, names []string, get func(internal.Context, string) string) internal.Gate {
	return internal.GateFunc(func(c internal.Context) bool {
		var missing []string
		for _, name := range names {
			if get(c, name) == "" {
				missing = append(missing, name)
			}
		}
		if len(missing) == 0 {
			return true
		}
		c.Respond(nil, internal.ErrBadRequest(
			"missing "+kind,
			internal.WithDetail(strings.Join(missing, ", ")),
		))
		return false
	})
}
