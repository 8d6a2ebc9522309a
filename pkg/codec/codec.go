package codec

import (
	"fmt"
	"mime"
	"strings"
	"sync"
)

// Codec converts between Go values and a wire format.
type Codec interface {
	// Name returns a short identifier such as "json".
	Name() string

	// ContentTypes returns the media types served by the codec.
	// The first entry is used when encoding.
	ContentTypes() []string

	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// Registry resolves codecs by media type.
// It is safe for concurrent use.
type Registry struct {
	fallback Codec
	byType   map[string]Codec
	suffixes map[string]Codec
	mu       sync.RWMutex
}

// NewRegistry creates a registry with the given fallback codec, used for
// requests without a Content-Type, and any number of additional codecs.
func NewRegistry(fallback Codec, codecs ...Codec) *Registry {
	r := &Registry{
		fallback: fallback,
		byType:   make(map[string]Codec),
		suffixes: make(map[string]Codec),
	}
	if fallback != nil {
		r.Register(fallback)
	}
	for _, c := range codecs {
		r.Register(c)
	}
	return r
}

// Default returns a registry with every built-in codec and JSON as fallback.
func Default() *Registry {
	r := NewRegistry(JSON, YAML, TOML, MsgPack, Form)
	r.registerSuffix("json", JSON)
	r.registerSuffix("yaml", YAML)
	return r
}

// Register adds a codec for all of its content types.
// A later registration for the same media type replaces the earlier one.
func (r *Registry) Register(c Codec) {
	if c == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ct := range c.ContentTypes() {
		r.byType[strings.ToLower(ct)] = c
	}
}

func (r *Registry) registerSuffix(suffix string, c Codec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.suffixes[suffix] = c
}

// Lookup returns the codec for a Content-Type header value.
// An empty value resolves to the fallback codec.
func (r *Registry) Lookup(contentType string) (Codec, bool) {
	if strings.TrimSpace(contentType) == "" {
		return r.fallback, r.fallback != nil
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if c, ok := r.byType[mediaType]; ok {
		return c, true
	}
	if i := strings.LastIndexByte(mediaType, '+'); i >= 0 {
		if c, ok := r.suffixes[mediaType[i+1:]]; ok {
			return c, true
		}
	}
	return nil, false
}

// Decode unmarshals data into v using the codec registered for contentType.
func (r *Registry) Decode(contentType string, data []byte, v any) error {
	c, ok := r.Lookup(contentType)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedContentType, contentType)
	}
	return c.Unmarshal(data, v)
}

// Encode marshals v with the codec registered for contentType and returns
// the bytes together with the canonical media type of that codec.
func (r *Registry) Encode(contentType string, v any) ([]byte, string, error) {
	c, ok := r.Lookup(contentType)
	if !ok {
		return nil, "", fmt.Errorf("%w: %q", ErrUnsupportedContentType, contentType)
	}
	data, err := c.Marshal(v)
	if err != nil {
		return nil, "", err
	}
	return data, c.ContentTypes()[0], nil
}
