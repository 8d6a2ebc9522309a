package codec

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/BurntSushi/toml"
	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"
)

// Built-in codecs.
var (
	JSON    Codec = jsonCodec{}
	YAML    Codec = yamlCodec{}
	TOML    Codec = tomlCodec{}
	MsgPack Codec = msgpackCodec{}
	Form    Codec = formCodec{}
)

type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) ContentTypes() []string {
	return []string{"application/json", "text/json"}
}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Join(ErrEncode, err)
	}
	return data, nil
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Join(ErrDecode, err)
	}
	return nil
}

type yamlCodec struct{}

func (yamlCodec) Name() string { return "yaml" }

func (yamlCodec) ContentTypes() []string {
	return []string{"application/yaml", "application/x-yaml", "text/yaml", "text/x-yaml"}
}

func (yamlCodec) Marshal(v any) ([]byte, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return nil, errors.Join(ErrEncode, err)
	}
	return data, nil
}

func (yamlCodec) Unmarshal(data []byte, v any) error {
	if err := yaml.Unmarshal(data, v); err != nil {
		return errors.Join(ErrDecode, err)
	}
	return nil
}

type tomlCodec struct{}

func (tomlCodec) Name() string { return "toml" }

func (tomlCodec) ContentTypes() []string {
	return []string{"application/toml"}
}

func (tomlCodec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(v); err != nil {
		return nil, errors.Join(ErrEncode, err)
	}
	return buf.Bytes(), nil
}

func (tomlCodec) Unmarshal(data []byte, v any) error {
	if _, err := toml.Decode(string(data), v); err != nil {
		return errors.Join(ErrDecode, err)
	}
	return nil
}

type msgpackCodec struct{}

func (msgpackCodec) Name() string { return "msgpack" }

func (msgpackCodec) ContentTypes() []string {
	return []string{"application/msgpack", "application/x-msgpack", "application/vnd.msgpack"}
}

func (msgpackCodec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(v); err != nil {
		return nil, errors.Join(ErrEncode, err)
	}
	return buf.Bytes(), nil
}

func (msgpackCodec) Unmarshal(data []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	if err := dec.Decode(v); err != nil {
		return errors.Join(ErrDecode, err)
	}
	return nil
}

// UnmarshalMsgPackStrict decodes MessagePack like MsgPack.Unmarshal but
// fails when the data holds a map key that the target struct has no field for.
func UnmarshalMsgPackStrict(data []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	dec.DisallowUnknownFields(true)
	if err := dec.Decode(v); err != nil {
		return errors.Join(ErrDecode, err)
	}
	return nil
}
