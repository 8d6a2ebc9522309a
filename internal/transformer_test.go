package internal_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/conduit/internal"
)

type reading struct {
	Location    string  `json:"location" validate:"required"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
}

type token string

type loaded struct {
	Path string
}

func (l *loaded) FromContext(c internal.Context) error {
	l.Path = c.Request().URL.Path
	return nil
}

func TestResolve_Order(t *testing.T) {
	t.Parallel()

	t.Run("registry", func(t *testing.T) {
		t.Parallel()
		c := newTestContext(t, http.MethodGet, "/", "", nil)
		internal.RegisterTransformer(c.Transformers(), func(c internal.Context) (token, error) {
			return token("t-1"), nil
		})
		got, err := internal.Resolve[token](c)
		require.NoError(t, err)
		assert.Equal(t, token("t-1"), got)
	})

	t.Run("loader method", func(t *testing.T) {
		t.Parallel()
		c := newTestContext(t, http.MethodGet, "/p", "", nil)
		got, err := internal.Resolve[loaded](c)
		require.NoError(t, err)
		assert.Equal(t, "/p", got.Path)
	})

	t.Run("application state", func(t *testing.T) {
		t.Parallel()
		st := &appState{Name: "db"}
		c := newTestContext(t, http.MethodGet, "/", "", st)
		got, err := internal.Resolve[*appState](c)
		require.NoError(t, err)
		assert.Same(t, st, got)
	})

	t.Run("missing state answers 500", func(t *testing.T) {
		t.Parallel()
		c := newTestContext(t, http.MethodGet, "/", "", nil)
		_, err := internal.Resolve[*appState](c)
		require.ErrorIs(t, err, internal.ErrHandlerSkipped)
		require.ErrorIs(t, err, internal.ErrNoTransformer)
		assert.Equal(t, http.StatusInternalServerError, c.Response().Status())

		var terr *internal.TransformError
		require.ErrorAs(t, err, &terr)
		assert.Equal(t, "*internal_test.appState", terr.Type.String())
	})

	t.Run("identity types", func(t *testing.T) {
		t.Parallel()
		c := newTestContext(t, http.MethodGet, "/x?q=1", "", nil)
		got, err := internal.Resolve[internal.Context](c)
		require.NoError(t, err)
		assert.Same(t, c, got)

		req, err := internal.Resolve[*http.Request](c)
		require.NoError(t, err)
		assert.Equal(t, "/x", req.URL.Path)

		q, err := internal.Resolve[internal.Query](c)
		require.NoError(t, err)
		assert.Equal(t, "1", q.Get("q"))
	})
}

func TestDto(t *testing.T) {
	t.Parallel()

	t.Run("decodes exact values", func(t *testing.T) {
		t.Parallel()
		c := newTestContext(t, http.MethodPost, "/", `{"location":"X","temperature":1.5,"humidity":50.0}`, nil)
		dto, err := internal.Resolve[internal.Dto[reading]](c)
		require.NoError(t, err)
		assert.Equal(t, reading{Location: "X", Temperature: 1.5, Humidity: 50}, dto.Value)
	})

	t.Run("malformed body answers 400", func(t *testing.T) {
		t.Parallel()
		c := newTestContext(t, http.MethodPost, "/", `not json`, nil)
		_, err := internal.Resolve[internal.Dto[reading]](c)
		require.ErrorIs(t, err, internal.ErrHandlerSkipped)
		assert.Equal(t, http.StatusBadRequest, c.Response().Status())
		assert.Contains(t, string(c.Response().Body()), "invalid character")
	})

	t.Run("invalid value answers 422", func(t *testing.T) {
		t.Parallel()
		c := newTestContext(t, http.MethodPost, "/", `{"temperature":3}`, nil)
		_, err := internal.Resolve[internal.Dto[reading]](c)
		require.Error(t, err)
		assert.Equal(t, http.StatusUnprocessableEntity, c.Response().Status())

		var body struct {
			Errors []struct {
				Field string `json:"field"`
				Rule  string `json:"rule"`
			} `json:"errors"`
		}
		require.NoError(t, json.Unmarshal(c.Response().Body(), &body))
		require.Len(t, body.Errors, 1)
		assert.Equal(t, "location", body.Errors[0].Field)
		assert.Equal(t, "required", body.Errors[0].Rule)
	})

	t.Run("unknown content type answers 415", func(t *testing.T) {
		t.Parallel()
		c := newTestContext(t, http.MethodPost, "/", `x`, nil)
		c.Request().Header.Set("Content-Type", "application/x-unknown")
		_, err := internal.Resolve[internal.Dto[reading]](c)
		require.Error(t, err)
		assert.Equal(t, http.StatusUnsupportedMediaType, c.Response().Status())
	})
}

type itemRef struct {
	Shop string `form:"shop" validate:"required"`
	ID   int    `form:"id" validate:"gt=0"`
}

type listFilter struct {
	Tags  []string `form:"tag"`
	Limit int      `form:"limit" validate:"lte=100"`
	Page  *int     `json:"page"`
}

func TestParamsOf(t *testing.T) {
	t.Parallel()

	pattern := internal.MustCompilePattern("/shops/<shop>/items/<id>")

	t.Run("converts captures into fields", func(t *testing.T) {
		t.Parallel()
		c := newTestContext(t, http.MethodGet, "/shops/north/items/42", "", nil)
		require.True(t, c.With(pattern, http.MethodGet))

		got, err := internal.Resolve[internal.ParamsOf[itemRef]](c)
		require.NoError(t, err)
		assert.Equal(t, itemRef{Shop: "north", ID: 42}, got.Value)
	})

	t.Run("non numeric capture answers 400", func(t *testing.T) {
		t.Parallel()
		c := newTestContext(t, http.MethodGet, "/shops/north/items/abc", "", nil)
		require.True(t, c.With(pattern, http.MethodGet))

		_, err := internal.Resolve[internal.ParamsOf[itemRef]](c)
		require.ErrorIs(t, err, internal.ErrHandlerSkipped)
		assert.Equal(t, http.StatusBadRequest, c.Response().Status())
		assert.Contains(t, string(c.Response().Body()), `"id"`)
	})

	t.Run("failed rule answers 422", func(t *testing.T) {
		t.Parallel()
		c := newTestContext(t, http.MethodGet, "/shops/north/items/0", "", nil)
		require.True(t, c.With(pattern, http.MethodGet))

		_, err := internal.Resolve[internal.ParamsOf[itemRef]](c)
		require.Error(t, err)
		assert.Equal(t, http.StatusUnprocessableEntity, c.Response().Status())
	})
}

func TestQueryOf(t *testing.T) {
	t.Parallel()

	t.Run("decodes repeated keys and pointers", func(t *testing.T) {
		t.Parallel()
		c := newTestContext(t, http.MethodGet, "/?tag=a&tag=b&limit=10&page=2", "", nil)

		got, err := internal.Resolve[internal.QueryOf[listFilter]](c)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, got.Value.Tags)
		assert.Equal(t, 10, got.Value.Limit)
		require.NotNil(t, got.Value.Page)
		assert.Equal(t, 2, *got.Value.Page)
	})

	t.Run("missing keys keep zero values", func(t *testing.T) {
		t.Parallel()
		c := newTestContext(t, http.MethodGet, "/", "", nil)

		got, err := internal.Resolve[internal.QueryOf[listFilter]](c)
		require.NoError(t, err)
		assert.Equal(t, listFilter{}, got.Value)
	})

	t.Run("bad number answers 400", func(t *testing.T) {
		t.Parallel()
		c := newTestContext(t, http.MethodGet, "/?limit=ten", "", nil)

		_, err := internal.Resolve[internal.QueryOf[listFilter]](c)
		require.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, c.Response().Status())
	})

	t.Run("failed rule answers 422", func(t *testing.T) {
		t.Parallel()
		c := newTestContext(t, http.MethodGet, "/?limit=500", "", nil)

		_, err := internal.Resolve[internal.QueryOf[listFilter]](c)
		require.Error(t, err)
		assert.Equal(t, http.StatusUnprocessableEntity, c.Response().Status())
	})
}

func TestBody(t *testing.T) {
	t.Parallel()

	c := newTestContext(t, http.MethodPost, "/", `{"location":"Y"}`, nil)
	body, err := internal.Resolve[internal.Body](c)
	require.NoError(t, err)
	assert.Equal(t, `{"location":"Y"}`, body.Text())

	var r reading
	require.NoError(t, body.JSON(&r))
	assert.Equal(t, "Y", r.Location)

	var decoded reading
	require.NoError(t, body.Decode(&decoded))
	assert.Equal(t, "Y", decoded.Location)

	formCtx := newTestContext(t, http.MethodPost, "/", "", nil)
	formBody := internal.Body{}
	require.NoError(t, formBody.FromContext(formCtx))
	values, err := formBody.Form()
	require.NoError(t, err)
	assert.Empty(t, values)
}

func TestBind_SkipsRemainingArguments(t *testing.T) {
	t.Parallel()

	resolvedSecond := false
	c := newTestContext(t, http.MethodPost, "/", `not json`, nil)
	internal.RegisterTransformer(c.Transformers(), func(c internal.Context) (token, error) {
		resolvedSecond = true
		return "", nil
	})

	called := false
	h := internal.Bind2(func(d internal.Dto[reading], _ token) (string, error) {
		called = true
		return d.Value.Location, nil
	})
	_, err := h(c)

	require.ErrorIs(t, err, internal.ErrHandlerSkipped)
	assert.False(t, called)
	assert.False(t, resolvedSecond)
}

func TestBind_Arity(t *testing.T) {
	t.Parallel()

	c := newTestContext(t, http.MethodGet, "/?a=1", "", &appState{Name: "s"})
	require.True(t, c.With(internal.MustCompilePattern("/"), ""))

	v, err := internal.Bind0(func() (string, error) { return "zero", nil })(c)
	require.NoError(t, err)
	assert.Equal(t, "zero", v)

	v, err = internal.Bind3(func(q internal.Query, st *appState, _ internal.Params) (string, error) {
		return q.Get("a") + st.Name, nil
	})(c)
	require.NoError(t, err)
	assert.Equal(t, "1s", v)

	v, err = internal.Bind4(func(_ internal.Context, _ *http.Request, _ internal.Query, st *appState) (int, error) {
		return len(st.Name), errors.New("boom")
	})(c)
	assert.Equal(t, 1, v)
	assert.EqualError(t, err, "boom")
}
