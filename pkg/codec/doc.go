// Package codec decodes and encodes request and response bodies by media type.
//
// A Registry maps Content-Type values to codecs. JSON is the fallback when a
// request carries no Content-Type at all; unknown media types are rejected with
// ErrUnsupportedContentType so callers can answer 415.
//
// Built-in codecs:
//   - JSON: application/json, text/json and any "+json" suffix
//   - YAML: application/yaml, application/x-yaml, text/yaml and "+yaml"
//   - TOML: application/toml
//   - MsgPack: application/msgpack, application/x-msgpack, application/vnd.msgpack
//   - Form: application/x-www-form-urlencoded
//
// MessagePack and form codecs honour `json` struct tags, so a single DTO type
// can be decoded from every supported format:
//
//	type CreateItem struct {
//	    Name  string  `json:"name" yaml:"name" toml:"name"`
//	    Price float64 `json:"price" yaml:"price" toml:"price"`
//	}
//
//	var in CreateItem
//	err := codec.Default().Decode(r.Header.Get("Content-Type"), body, &in)
package codec
