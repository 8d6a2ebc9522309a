package internal

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"sync"

	"github.com/dmitrymomot/conduit/pkg/codec"
	"github.com/dmitrymomot/conduit/pkg/validator"
)

// Transformer produces a handler argument from a Context. On failure it
// writes the client-facing response itself and returns an error; the
// handler is then skipped.
type Transformer func(c Context) (any, error)

// ContextLoader is implemented by argument types that know how to fill
// themselves from a Context. Params, Query, Body, Dto, ParamsOf and
// QueryOf implement it.
type ContextLoader interface {
	FromContext(c Context) error
}

// Registry maps argument types to transformers.
// It is safe for concurrent use.
type Registry struct {
	byType map[reflect.Type]Transformer
	mu     sync.RWMutex
}

// NewRegistry returns a registry holding the identity transformers for
// Context and *http.Request.
func NewRegistry() *Registry {
	r := &Registry{byType: make(map[reflect.Type]Transformer)}
	r.Register(reflect.TypeFor[Context](), func(c Context) (any, error) { return c, nil })
	r.Register(reflect.TypeFor[*http.Request](), func(c Context) (any, error) { return c.Request(), nil })
	r.Register(reflect.TypeFor[*Store](), func(c Context) (any, error) { return c.Store(), nil })
	return r
}

// Register installs fn for t, replacing any previous transformer.
func (r *Registry) Register(t reflect.Type, fn Transformer) {
	if t == nil || fn == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byType[t] = fn
}

// Lookup returns the transformer registered for t.
func (r *Registry) Lookup(t reflect.Type) (Transformer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.byType[t]
	return fn, ok
}

// RegisterTransformer installs a typed transformer for T.
func RegisterTransformer[T any](r *Registry, fn func(c Context) (T, error)) {
	r.Register(reflect.TypeFor[T](), func(c Context) (any, error) {
		return fn(c)
	})
}

// Resolve produces a T from c. It tries, in order: a transformer registered
// for T, the FromContext method of *T, and the application state when it is
// assignable to T. Failures are reported as *TransformError; a failure that
// did not set a status leaves the response at 500.
func Resolve[T any](c Context) (T, error) {
	var zero T
	t := reflect.TypeFor[T]()

	v, err := resolve[T](c, t)
	if err != nil {
		if !c.Response().StatusSet() {
			c.SetStatus(http.StatusInternalServerError)
		}
		c.LogDebug("argument transform failed", "type", t.String(), "error", err)
		return zero, &TransformError{Type: t, Err: err}
	}
	return v, nil
}

func resolve[T any](c Context, t reflect.Type) (T, error) {
	var zero T

	if fn, ok := c.Transformers().Lookup(t); ok {
		v, err := fn(c)
		if err != nil {
			return zero, err
		}
		typed, ok := v.(T)
		if !ok && v != nil {
			return zero, fmt.Errorf("transformer for %s returned %T", t, v)
		}
		return typed, nil
	}

	var v T
	if loader, ok := any(&v).(ContextLoader); ok {
		if err := loader.FromContext(c); err != nil {
			return zero, err
		}
		return v, nil
	}

	if state, ok := c.State().(T); ok {
		return state, nil
	}
	return zero, ErrNoTransformer
}

// State returns the application state as a T.
func State[T any](c Context) (T, bool) {
	v, ok := c.State().(T)
	return v, ok
}

// Injected returns the injected field name as a T.
func Injected[T any](c Context, name string) (T, bool) {
	v, ok := c.Field(name)
	if !ok {
		var zero T
		return zero, false
	}
	typed, ok := v.(T)
	return typed, ok
}

// Query is the parsed query string as a handler argument.
type Query struct {
	url.Values
}

func (q *Query) FromContext(c Context) error {
	q.Values = c.QueryValues()
	return nil
}

// Body is the raw request body as a handler argument.
type Body struct {
	codecs      *codec.Registry
	contentType string
	data        []byte
}

func (b *Body) FromContext(c Context) error {
	b.data = c.Body()
	b.contentType = c.Header("Content-Type")
	b.codecs = c.Codecs()
	return nil
}

// Bytes returns the raw body.
func (b Body) Bytes() []byte {
	return b.data
}

// Text returns the body as a string.
func (b Body) Text() string {
	return string(b.data)
}

// JSON decodes the body as JSON regardless of Content-Type.
func (b Body) JSON(v any) error {
	return codec.JSON.Unmarshal(b.data, v)
}

// Form parses the body as URL-encoded form values.
func (b Body) Form() (url.Values, error) {
	return url.ParseQuery(string(b.data))
}

// Decode decodes the body with the codec matching its Content-Type.
func (b Body) Decode(v any) error {
	reg := b.codecs
	if reg == nil {
		reg = codec.Default()
	}
	return reg.Decode(b.contentType, b.data, v)
}

// Dto decodes the request body into T and validates it.
//
// Decoding failures answer 400 with the error text, an unknown
// Content-Type answers 415, and validation failures answer 422 with the
// list of field errors as JSON.
type Dto[T any] struct {
	Value T
}

func (d *Dto[T]) FromContext(c Context) error {
	err := c.Bind(&d.Value)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		_ = c.JSON(http.StatusUnprocessableEntity, map[string]any{"errors": verrs})
	case errors.Is(err, codec.ErrUnsupportedContentType):
		_ = c.String(http.StatusUnsupportedMediaType, err.Error())
	default:
		_ = c.String(http.StatusBadRequest, err.Error())
	}
	return err
}

// ParamsOf decodes the route captures into the fields of T and validates
// the result. Fields are matched by `form` tag, then `json` tag, then name.
//
// A capture that does not convert to its field type answers 400, and
// validation failures answer 422 like Dto.
type ParamsOf[T any] struct {
	Value T
}

func (p *ParamsOf[T]) FromContext(c Context) error {
	values := make(url.Values, len(c.Params()))
	for _, param := range c.Params() {
		values.Add(param.Name, param.Value)
	}
	return decodeValues(c, values, &p.Value)
}

// QueryOf decodes the query string into the fields of T and validates the
// result. Repeated keys fill slice fields.
type QueryOf[T any] struct {
	Value T
}

func (q *QueryOf[T]) FromContext(c Context) error {
	return decodeValues(c, c.QueryValues(), &q.Value)
}

func decodeValues(c Context, values url.Values, dst any) error {
	if err := codec.DecodeValues(values, dst); err != nil {
		_ = c.String(http.StatusBadRequest, err.Error())
		return err
	}
	if err := c.Validate(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			_ = c.JSON(http.StatusUnprocessableEntity, map[string]any{"errors": verrs})
		} else {
			_ = c.String(http.StatusInternalServerError, err.Error())
		}
		return err
	}
	return nil
}
