package codec

import "errors"

var (
	ErrUnsupportedContentType = errors.New("codec: unsupported content type")
	ErrDecode                 = errors.New("codec: failed to decode body")
	ErrEncode                 = errors.New("codec: failed to encode value")
	ErrFormTarget             = errors.New("codec: form target must be a pointer to a struct or map")
)
