package recordstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Document field names.
const (
	FieldData    = "data"
	FieldDataURL = "dataUrl"
	FieldDetails = "details"
)

// Document is a record's JSON object. Fields are kept as raw JSON in their
// original order so fields this package does not know about survive a
// read/write cycle unchanged.
type Document struct {
	keys   []string
	values map[string]json.RawMessage
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{values: map[string]json.RawMessage{}}
}

// ParseDocument decodes a JSON object.
func ParseDocument(data []byte) (*Document, error) {
	doc := NewDocument()
	if err := doc.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return doc, nil
}

// Keys returns the field names in document order.
func (d *Document) Keys() []string {
	return append([]string(nil), d.keys...)
}

// Has reports whether key is present.
func (d *Document) Has(key string) bool {
	_, ok := d.values[key]
	return ok
}

// Raw returns the JSON value for key.
func (d *Document) Raw(key string) (json.RawMessage, bool) {
	v, ok := d.values[key]
	return v, ok
}

// Set stores value under key, appending new keys at the end.
func (d *Document) Set(key string, value any) error {
	raw, err := encodeValue(value)
	if err != nil {
		return fmt.Errorf("document field %s: %w", key, err)
	}
	if d.values == nil {
		d.values = map[string]json.RawMessage{}
	}
	if _, ok := d.values[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.values[key] = raw
	return nil
}

// String returns a string field. ok is false when the key is missing or not
// a JSON string.
func (d *Document) String(key string) (string, bool) {
	raw, ok := d.values[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// Data returns the base64 detail payload.
func (d *Document) Data() (string, bool) { return d.String(FieldData) }

// DataURL returns the URL the detail payload can be downloaded from.
func (d *Document) DataURL() (string, bool) { return d.String(FieldDataURL) }

// DetailCount returns the number of decoded entries, or -1 when the document
// has no details.
func (d *Document) DetailCount() int {
	raw, ok := d.values[FieldDetails]
	if !ok {
		return -1
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return -1
	}
	return len(entries)
}

// Stage derives the pipeline stage from which fields are present.
func (d *Document) Stage() Stage {
	switch {
	case d.Has(FieldDetails):
		return StageDecoded
	case d.Has(FieldData):
		return StageDetailed
	default:
		return StageFetched
	}
}

// MarshalJSON implements json.Marshaler.
func (d *Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range d.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := encodeValue(key)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(d.values[key])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler. Duplicate keys keep the last
// value at the position of the first occurrence.
func (d *Document) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("record document: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.New("record document: expected a JSON object")
	}

	d.keys = d.keys[:0]
	d.values = map[string]json.RawMessage{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("record document: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("record document: unexpected token %v", tok)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("record document field %s: %w", key, err)
		}
		if _, seen := d.values[key]; !seen {
			d.keys = append(d.keys, key)
		}
		d.values[key] = value
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("record document: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return errors.New("record document: trailing data after object")
	}
	return nil
}

func encodeValue(value any) (json.RawMessage, error) {
	if raw, ok := value.(json.RawMessage); ok {
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(value); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
