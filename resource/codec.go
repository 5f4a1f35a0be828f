package resource

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownKind is returned when a tagged JSON object carries an
// unrecognised "type" discriminator.
var ErrUnknownKind = errors.New("unknown kind")

// Tagged is implemented by every variant of the sealed content unions.
type Tagged interface {
	Kind() string
}

type decoder[T any] func(json.RawMessage) (T, error)

func decodeTagged[T any](raw json.RawMessage, decoders map[string]decoder[T]) (T, error) {
	var zero T
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return zero, err
	}
	dec, ok := decoders[head.Type]
	if !ok {
		return zero, fmt.Errorf("%w %q", ErrUnknownKind, head.Type)
	}
	return dec(raw)
}

// encodeTagged marshals v and prepends its "type" discriminator.
func encodeTagged(kind string, v any) (json.RawMessage, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	tag, _ := json.Marshal(kind)
	var buf bytes.Buffer
	buf.WriteString(`{"type":`)
	buf.Write(tag)
	if trimmed := bytes.TrimSpace(body); len(trimmed) > 2 {
		buf.WriteByte(',')
		buf.Write(trimmed[1:])
	} else {
		buf.WriteByte('}')
	}
	return buf.Bytes(), nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
