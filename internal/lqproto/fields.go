package lqproto

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// Fields describes message content by proto field name. Values may be scalars,
// slices of scalars, nested Fields, or []Fields.
type Fields map[string]any

// Build creates a message of the named type and populates it from fields.
func (c *Catalog) Build(name string, fields Fields) (protoreflect.Message, error) {
	m, err := c.New(name)
	if err != nil {
		return nil, err
	}
	if err := Fill(m, fields); err != nil {
		return nil, fmt.Errorf("build %s: %w", ShortName(name), err)
	}
	return m, nil
}

// Marshal builds and serializes a message in one step.
func (c *Catalog) Marshal(name string, fields Fields) ([]byte, error) {
	m, err := c.Build(name, fields)
	if err != nil {
		return nil, err
	}
	return proto.Marshal(m.Interface())
}

// Fill sets each named field on m.
func Fill(m protoreflect.Message, fields Fields) error {
	desc := m.Descriptor().Fields()
	for name, value := range fields {
		fd := desc.ByName(protoreflect.Name(name))
		if fd == nil {
			return fmt.Errorf("%s has no field %q", m.Descriptor().FullName(), name)
		}
		if err := setField(m, fd, value); err != nil {
			return fmt.Errorf("field %s: %w", name, err)
		}
	}
	return nil
}

func setField(m protoreflect.Message, fd protoreflect.FieldDescriptor, value any) error {
	if fd.IsList() {
		items, err := listItems(value)
		if err != nil {
			return err
		}
		lst := m.Mutable(fd).List()
		for _, item := range items {
			if fd.Kind() == protoreflect.MessageKind {
				sub, ok := item.(Fields)
				if !ok {
					return fmt.Errorf("expected Fields element, got %T", item)
				}
				elem := lst.NewElement()
				if err := Fill(elem.Message(), sub); err != nil {
					return err
				}
				lst.Append(elem)
				continue
			}
			v, err := scalarValue(fd.Kind(), item)
			if err != nil {
				return err
			}
			lst.Append(v)
		}
		return nil
	}
	if fd.Kind() == protoreflect.MessageKind {
		sub, ok := value.(Fields)
		if !ok {
			return fmt.Errorf("expected Fields, got %T", value)
		}
		return Fill(m.Mutable(fd).Message(), sub)
	}
	v, err := scalarValue(fd.Kind(), value)
	if err != nil {
		return err
	}
	m.Set(fd, v)
	return nil
}

func listItems(value any) ([]any, error) {
	switch v := value.(type) {
	case []any:
		return v, nil
	case []string:
		out := make([]any, len(v))
		for i := range v {
			out[i] = v[i]
		}
		return out, nil
	case []uint32:
		out := make([]any, len(v))
		for i := range v {
			out[i] = v[i]
		}
		return out, nil
	case []int32:
		out := make([]any, len(v))
		for i := range v {
			out[i] = v[i]
		}
		return out, nil
	case []bool:
		out := make([]any, len(v))
		for i := range v {
			out[i] = v[i]
		}
		return out, nil
	case [][]byte:
		out := make([]any, len(v))
		for i := range v {
			out[i] = v[i]
		}
		return out, nil
	case []Fields:
		out := make([]any, len(v))
		for i := range v {
			out[i] = v[i]
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected a slice, got %T", value)
	}
}

func scalarValue(kind protoreflect.Kind, value any) (protoreflect.Value, error) {
	switch kind {
	case protoreflect.StringKind:
		if s, ok := value.(string); ok {
			return protoreflect.ValueOfString(s), nil
		}
	case protoreflect.BytesKind:
		if b, ok := value.([]byte); ok {
			return protoreflect.ValueOfBytes(b), nil
		}
	case protoreflect.BoolKind:
		if b, ok := value.(bool); ok {
			return protoreflect.ValueOfBool(b), nil
		}
	case protoreflect.Uint32Kind:
		switch n := value.(type) {
		case uint32:
			return protoreflect.ValueOfUint32(n), nil
		case int:
			if n >= 0 {
				return protoreflect.ValueOfUint32(uint32(n)), nil
			}
		}
	case protoreflect.Int32Kind:
		switch n := value.(type) {
		case int32:
			return protoreflect.ValueOfInt32(n), nil
		case int:
			return protoreflect.ValueOfInt32(int32(n)), nil
		}
	case protoreflect.FloatKind:
		switch n := value.(type) {
		case float32:
			return protoreflect.ValueOfFloat32(n), nil
		case float64:
			return protoreflect.ValueOfFloat32(float32(n)), nil
		}
	}
	return protoreflect.Value{}, fmt.Errorf("cannot use %T as %s", value, kind)
}

// GetString returns a string field, or "" when unset or of another kind.
func GetString(m protoreflect.Message, name string) string {
	fd := m.Descriptor().Fields().ByName(protoreflect.Name(name))
	if fd == nil || fd.Kind() != protoreflect.StringKind || fd.IsList() {
		return ""
	}
	return m.Get(fd).String()
}

// GetUint32 returns a uint32 field, or 0.
func GetUint32(m protoreflect.Message, name string) uint32 {
	fd := m.Descriptor().Fields().ByName(protoreflect.Name(name))
	if fd == nil || fd.Kind() != protoreflect.Uint32Kind || fd.IsList() {
		return 0
	}
	return uint32(m.Get(fd).Uint())
}

// GetBool returns a bool field, or false.
func GetBool(m protoreflect.Message, name string) bool {
	fd := m.Descriptor().Fields().ByName(protoreflect.Name(name))
	if fd == nil || fd.Kind() != protoreflect.BoolKind || fd.IsList() {
		return false
	}
	return m.Get(fd).Bool()
}

// GetBytes returns a bytes field, or nil.
func GetBytes(m protoreflect.Message, name string) []byte {
	fd := m.Descriptor().Fields().ByName(protoreflect.Name(name))
	if fd == nil || fd.Kind() != protoreflect.BytesKind || fd.IsList() {
		return nil
	}
	return m.Get(fd).Bytes()
}

// GetMessage returns a populated singular message field, or nil.
func GetMessage(m protoreflect.Message, name string) protoreflect.Message {
	fd := m.Descriptor().Fields().ByName(protoreflect.Name(name))
	if fd == nil || fd.Message() == nil || fd.IsList() || !m.Has(fd) {
		return nil
	}
	return m.Get(fd).Message()
}

// GetMessages returns the elements of a repeated message field.
func GetMessages(m protoreflect.Message, name string) []protoreflect.Message {
	fd := m.Descriptor().Fields().ByName(protoreflect.Name(name))
	if fd == nil || fd.Message() == nil || !fd.IsList() {
		return nil
	}
	lst := m.Get(fd).List()
	out := make([]protoreflect.Message, 0, lst.Len())
	for i := 0; i < lst.Len(); i++ {
		out = append(out, lst.Get(i).Message())
	}
	return out
}

// GetBytesList returns the elements of a repeated bytes field.
func GetBytesList(m protoreflect.Message, name string) [][]byte {
	fd := m.Descriptor().Fields().ByName(protoreflect.Name(name))
	if fd == nil || fd.Kind() != protoreflect.BytesKind || !fd.IsList() {
		return nil
	}
	lst := m.Get(fd).List()
	out := make([][]byte, 0, lst.Len())
	for i := 0; i < lst.Len(); i++ {
		out = append(out, lst.Get(i).Bytes())
	}
	return out
}
