package codec_test

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/conduit/pkg/codec"
)

type reading struct {
	Location    string  `json:"location" yaml:"location" toml:"location"`
	Temperature float64 `json:"temperature" yaml:"temperature" toml:"temperature"`
	Humidity    float64 `json:"humidity" yaml:"humidity" toml:"humidity"`
}

func TestRegistry_Lookup(t *testing.T) {
	t.Parallel()

	r := codec.Default()

	tests := []struct {
		contentType string
		want        string
		ok          bool
	}{
		{"", "json", true},
		{"application/json", "json", true},
		{"application/json; charset=utf-8", "json", true},
		{"application/vnd.api+json", "json", true},
		{"application/x-yaml", "yaml", true},
		{"application/toml", "toml", true},
		{"application/msgpack", "msgpack", true},
		{"application/x-www-form-urlencoded", "form", true},
		{"text/plain", "", false},
		{"not a media type;;", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			t.Parallel()
			c, ok := r.Lookup(tt.contentType)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.want, c.Name())
			}
		})
	}
}

func TestRegistry_Decode(t *testing.T) {
	t.Parallel()

	r := codec.Default()
	want := reading{Location: "X", Temperature: 1.5, Humidity: 50}

	t.Run("json", func(t *testing.T) {
		t.Parallel()
		var got reading
		err := r.Decode("application/json", []byte(`{"location":"X","temperature":1.5,"humidity":50.0}`), &got)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("yaml", func(t *testing.T) {
		t.Parallel()
		var got reading
		err := r.Decode("application/yaml", []byte("location: X\ntemperature: 1.5\nhumidity: 50\n"), &got)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("toml", func(t *testing.T) {
		t.Parallel()
		var got reading
		err := r.Decode("application/toml", []byte("location = \"X\"\ntemperature = 1.5\nhumidity = 50.0\n"), &got)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("msgpack uses json tags", func(t *testing.T) {
		t.Parallel()
		data, err := codec.MsgPack.Marshal(want)
		require.NoError(t, err)

		var asMap map[string]any
		require.NoError(t, codec.MsgPack.Unmarshal(data, &asMap))
		assert.Contains(t, asMap, "location")

		var got reading
		require.NoError(t, r.Decode("application/msgpack", data, &got))
		assert.Equal(t, want, got)
	})

	t.Run("form into struct", func(t *testing.T) {
		t.Parallel()
		var got reading
		err := r.Decode("application/x-www-form-urlencoded", []byte("location=X&temperature=1.5&humidity=50"), &got)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("malformed json", func(t *testing.T) {
		t.Parallel()
		var got reading
		err := r.Decode("", []byte("not json"), &got)
		require.ErrorIs(t, err, codec.ErrDecode)
	})

	t.Run("unsupported media type", func(t *testing.T) {
		t.Parallel()
		var got reading
		err := r.Decode("text/plain", []byte("hi"), &got)
		require.ErrorIs(t, err, codec.ErrUnsupportedContentType)
	})
}

func TestForm(t *testing.T) {
	t.Parallel()

	type filter struct {
		Tags    []string `form:"tag"`
		Limit   int      `json:"limit,omitempty"`
		Enabled *bool    `form:"enabled"`
		Skipped string   `form:"-"`
	}

	t.Run("decode slices and pointers", func(t *testing.T) {
		t.Parallel()
		var f filter
		err := codec.Form.Unmarshal([]byte("tag=a&tag=b&limit=10&enabled=true&Skipped=x"), &f)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, f.Tags)
		assert.Equal(t, 10, f.Limit)
		require.NotNil(t, f.Enabled)
		assert.True(t, *f.Enabled)
		assert.Empty(t, f.Skipped)
	})

	t.Run("decode into url.Values", func(t *testing.T) {
		t.Parallel()
		var v url.Values
		require.NoError(t, codec.Form.Unmarshal([]byte("a=1&a=2"), &v))
		assert.Equal(t, []string{"1", "2"}, v["a"])
	})

	t.Run("bad number", func(t *testing.T) {
		t.Parallel()
		var f filter
		err := codec.Form.Unmarshal([]byte("limit=ten"), &f)
		require.ErrorIs(t, err, codec.ErrDecode)
	})

	t.Run("non-struct target", func(t *testing.T) {
		t.Parallel()
		var n int
		err := codec.Form.Unmarshal([]byte("a=1"), &n)
		require.ErrorIs(t, err, codec.ErrFormTarget)
	})

	t.Run("encode struct", func(t *testing.T) {
		t.Parallel()
		data, err := codec.Form.Marshal(filter{Tags: []string{"x"}, Limit: 3})
		require.NoError(t, err)
		values, err := url.ParseQuery(string(data))
		require.NoError(t, err)
		assert.Equal(t, "x", values.Get("tag"))
		assert.Equal(t, "3", values.Get("limit"))
		assert.False(t, values.Has("enabled"))
	})
}

func TestRegistry_Encode(t *testing.T) {
	t.Parallel()

	data, ct, err := codec.Default().Encode("application/x-yaml", map[string]int{"a": 1})
	require.NoError(t, err)
	assert.Equal(t, "application/yaml", ct)
	assert.Equal(t, "a: 1\n", string(data))
}
