package codec

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"strings"
)

type formCodec struct{}

func (formCodec) Name() string { return "form" }

func (formCodec) ContentTypes() []string {
	return []string{"application/x-www-form-urlencoded"}
}

func (formCodec) Marshal(v any) ([]byte, error) {
	values, err := formValues(v)
	if err != nil {
		return nil, errors.Join(ErrEncode, err)
	}
	return []byte(values.Encode()), nil
}

func (formCodec) Unmarshal(data []byte, v any) error {
	values, err := url.ParseQuery(string(data))
	if err != nil {
		return errors.Join(ErrDecode, err)
	}
	return DecodeValues(values, v)
}

// DecodeValues fills v from already parsed values. v is a pointer to a
// struct, url.Values or a string map. Struct fields follow the same naming
// rules as the form codec.
func DecodeValues(values url.Values, v any) error {
	switch dst := v.(type) {
	case *url.Values:
		*dst = values
		return nil
	case *map[string][]string:
		*dst = values
		return nil
	case *map[string]string:
		m := make(map[string]string, len(values))
		for k := range values {
			m[k] = values.Get(k)
		}
		*dst = m
		return nil
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return ErrFormTarget
	}
	if err := decodeFormStruct(values, rv.Elem()); err != nil {
		return errors.Join(ErrDecode, err)
	}
	return nil
}

// formFieldName resolves the key for a struct field: `form` tag first, then
// the name part of the `json` tag, then the Go field name.
func formFieldName(f reflect.StructField) (string, bool) {
	for _, tag := range []string{"form", "json"} {
		if v, ok := f.Tag.Lookup(tag); ok {
			name, _, _ := strings.Cut(v, ",")
			if name == "-" {
				return "", false
			}
			if name != "" {
				return name, true
			}
		}
	}
	return f.Name, true
}

func decodeFormStruct(values url.Values, rv reflect.Value) error {
	rt := rv.Type()
	for i := range rt.NumField() {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		name, ok := formFieldName(field)
		if !ok {
			continue
		}
		raw, present := values[name]
		if !present || len(raw) == 0 {
			continue
		}

		fv := rv.Field(i)
		if fv.Kind() == reflect.Slice {
			slice := reflect.MakeSlice(fv.Type(), len(raw), len(raw))
			for j, s := range raw {
				if err := setFormScalar(slice.Index(j), s); err != nil {
					return fmt.Errorf("field %q: %w", name, err)
				}
			}
			fv.Set(slice)
			continue
		}
		if err := setFormScalar(fv, raw[0]); err != nil {
			return fmt.Errorf("field %q: %w", name, err)
		}
	}
	return nil
}

func setFormScalar(v reflect.Value, s string) error {
	switch v.Kind() {
	case reflect.String:
		v.SetString(s)
	case reflect.Bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return err
		}
		v.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(s, 10, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(s, 10, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(s, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetFloat(f)
	case reflect.Pointer:
		elem := reflect.New(v.Type().Elem())
		if err := setFormScalar(elem.Elem(), s); err != nil {
			return err
		}
		v.Set(elem)
	default:
		return fmt.Errorf("unsupported kind %s", v.Kind())
	}
	return nil
}

func formValues(v any) (url.Values, error) {
	switch src := v.(type) {
	case url.Values:
		return src, nil
	case map[string][]string:
		return src, nil
	case map[string]string:
		values := make(url.Values, len(src))
		for k, s := range src {
			values.Set(k, s)
		}
		return values, nil
	}

	rv := reflect.Indirect(reflect.ValueOf(v))
	if rv.Kind() != reflect.Struct {
		return nil, ErrFormTarget
	}

	values := make(url.Values)
	rt := rv.Type()
	for i := range rt.NumField() {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		name, ok := formFieldName(field)
		if !ok {
			continue
		}
		fv := rv.Field(i)
		if fv.Kind() == reflect.Slice {
			for j := range fv.Len() {
				values.Add(name, fmt.Sprint(fv.Index(j).Interface()))
			}
			continue
		}
		if fv.Kind() == reflect.Pointer {
			if fv.IsNil() {
				continue
			}
			fv = fv.Elem()
		}
		values.Set(name, fmt.Sprint(fv.Interface()))
	}
	return values, nil
}
