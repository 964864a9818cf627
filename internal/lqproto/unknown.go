package lqproto

import (
	"fmt"
	"sort"

	"google.golang.org/protobuf/reflect/protoreflect"
)

// UnknownField is the wire data a message carried for field numbers its
// descriptor does not declare.
type UnknownField struct {
	// Path locates the carrying message using JSON field names, for example
	// "$", "$.head" or "$.hules[0]".
	Path string
	Raw  []byte
}

// Unknown collects the unknown fields of m and of every message nested in it,
// sorted by path.
func Unknown(m protoreflect.Message) []UnknownField {
	var out []UnknownField
	collectUnknown(m, "$", &out)
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func collectUnknown(m protoreflect.Message, path string, out *[]UnknownField) {
	if raw := m.GetUnknown(); len(raw) > 0 {
		*out = append(*out, UnknownField{Path: path, Raw: append([]byte(nil), raw...)})
	}
	m.Range(func(fd protoreflect.FieldDescriptor, v protoreflect.Value) bool {
		name := path + "." + fd.JSONName()
		switch {
		case fd.IsMap():
			if fd.MapValue().Message() == nil {
				return true
			}
			v.Map().Range(func(k protoreflect.MapKey, item protoreflect.Value) bool {
				collectUnknown(item.Message(), fmt.Sprintf("%s[%q]", name, k.String()), out)
				return true
			})
		case fd.IsList():
			if fd.Message() == nil {
				return true
			}
			items := v.List()
			for i := 0; i < items.Len(); i++ {
				collectUnknown(items.Get(i).Message(), fmt.Sprintf("%s[%d]", name, i), out)
			}
		case fd.Message() != nil:
			collectUnknown(v.Message(), name, out)
		}
		return true
	})
}
