package internal

import (
	"context"
	"log/slog"
	"reflect"
	"strconv"

	"github.com/dmitrymomot/conduit/pkg/logger"
)

// Scalar lists the types the typed param and query helpers convert to.
type Scalar interface {
	~string | ~int | ~int64 | ~float64 | ~bool
}

// ParamAs returns the named path capture converted to T.
// The zero value is returned when the capture is missing or invalid.
func ParamAs[T Scalar](c Context, name string) T {
	v, _ := convertParam[T](c.Param(name))
	return v
}

// QueryAs returns the named query value converted to T.
func QueryAs[T Scalar](c Context, name string) T {
	v, _ := convertParam[T](c.Query(name))
	return v
}

// QueryDefault retrieves a typed query parameter with a default value.
// Returns defaultValue if the parameter is empty or cannot be parsed.
func QueryDefault[T Scalar](c Context, name string, defaultValue T) T {
	raw := c.Query(name)
	if raw == "" {
		return defaultValue
	}
	v, ok := convertParam[T](raw)
	if !ok {
		return defaultValue
	}
	return v
}

// ContextValue returns the request context value for key as a T.
func ContextValue[T any](c Context, key any) T {
	if v, ok := c.Value(key).(T); ok {
		return v
	}
	var zero T
	return zero
}

// convertParam converts a raw string to T by its underlying kind, so named
// types such as `type UserID int64` work too.
func convertParam[T Scalar](raw string) (T, bool) {
	var out T
	rv := reflect.ValueOf(&out).Elem()
	switch rv.Kind() {
	case reflect.String:
		rv.SetString(raw)
	case reflect.Int, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, rv.Type().Bits())
		if err != nil {
			return out, false
		}
		rv.SetInt(n)
	case reflect.Float64:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return out, false
		}
		rv.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return out, false
		}
		rv.SetBool(b)
	default:
		return out, false
	}
	return out, true
}

// RouteExtractor returns a log extractor that adds the matched route as a
// "route" group with controller, handler and pattern.
func RouteExtractor() logger.ContextExtractor {
	return func(ctx context.Context) (slog.Attr, bool) {
		info, ok := ctx.Value(routeInfoKey{}).(RouteInfo)
		if !ok || info.Handler == "" {
			return slog.Attr{}, false
		}
		return slog.Group("route",
			slog.String("controller", info.Controller),
			slog.String("handler", info.Handler),
			slog.String("pattern", info.Pattern),
		), true
	}
}
