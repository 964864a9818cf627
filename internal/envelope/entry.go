package envelope

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

const (
	// TypeKey tags every decoded entry with its message name.
	TypeKey = "@type"
	// UnresolvedKey marks placeholder entries whose type is not in the catalog.
	UnresolvedKey = "@unresolved"
	// UnknownKey holds base64 wire data for fields the schema does not
	// declare, keyed by the path of the message that carried them.
	UnknownKey = "@unknown"
)

// Entry is one decoded record action: the message fields as JSON, followed by
// the "@type" tag. Field order follows the schema and is preserved through
// round trips.
type Entry struct {
	Type string
	raw  json.RawMessage
}

// NewEntry appends the "@type" tag to a JSON object of message fields.
func NewEntry(typeName string, fields []byte) (Entry, error) {
	var compact bytes.Buffer
	if err := json.Compact(&compact, fields); err != nil {
		return Entry{}, fmt.Errorf("entry %s: %w", typeName, err)
	}
	body := compact.Bytes()
	if len(body) < 2 || body[0] != '{' || body[len(body)-1] != '}' {
		return Entry{}, fmt.Errorf("entry %s: fields are not a JSON object", typeName)
	}
	tag, err := marshalString(typeName)
	if err != nil {
		return Entry{}, err
	}
	return Entry{Type: typeName, raw: appendMember(body, TypeKey, tag)}, nil
}

// appendMember adds key as the last member of a compact JSON object.
func appendMember(object []byte, key string, value []byte) []byte {
	out := make([]byte, 0, len(object)+len(key)+len(value)+4)
	out = append(out, object[:len(object)-1]...)
	if len(object) > 2 {
		out = append(out, ',')
	}
	out = append(out, '"')
	out = append(out, key...)
	out = append(out, '"', ':')
	out = append(out, value...)
	return append(out, '}')
}

// MarshalJSON implements json.Marshaler.
func (e Entry) MarshalJSON() ([]byte, error) {
	if len(e.raw) == 0 {
		return nil, errors.New("envelope: empty entry")
	}
	return e.raw, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var head struct {
		Type string `json:"@type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	if head.Type == "" {
		return fmt.Errorf("envelope: entry without %s", TypeKey)
	}
	e.Type = head.Type
	e.raw = append(e.raw[:0], data...)
	return nil
}

// Map decodes the entry into a generic mapping. Numbers stay json.Number so
// 64-bit values are not rounded.
func (e Entry) Map() (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(e.raw))
	dec.UseNumber()
	out := map[string]any{}
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// Unresolved reports whether the entry is a placeholder for an unknown type.
func (e Entry) Unresolved() bool {
	var head struct {
		Unresolved bool `json:"@unresolved"`
	}
	if err := json.Unmarshal(e.raw, &head); err != nil {
		return false
	}
	return head.Unresolved
}

func marshalString(s string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
