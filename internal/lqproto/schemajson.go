package lqproto

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/tidwall/gjson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"

	"majdl/internal/services"
)

// SchemaFileName is the client resource holding the full lq schema.
const SchemaFileName = "res/proto/liqi.json"

var scalarTypes = map[string]descriptorpb.FieldDescriptorProto_Type{
	"double":   descriptorpb.FieldDescriptorProto_TYPE_DOUBLE,
	"float":    descriptorpb.FieldDescriptorProto_TYPE_FLOAT,
	"int32":    descriptorpb.FieldDescriptorProto_TYPE_INT32,
	"int64":    descriptorpb.FieldDescriptorProto_TYPE_INT64,
	"uint32":   descriptorpb.FieldDescriptorProto_TYPE_UINT32,
	"uint64":   descriptorpb.FieldDescriptorProto_TYPE_UINT64,
	"sint32":   descriptorpb.FieldDescriptorProto_TYPE_SINT32,
	"sint64":   descriptorpb.FieldDescriptorProto_TYPE_SINT64,
	"fixed32":  descriptorpb.FieldDescriptorProto_TYPE_FIXED32,
	"fixed64":  descriptorpb.FieldDescriptorProto_TYPE_FIXED64,
	"sfixed32": descriptorpb.FieldDescriptorProto_TYPE_SFIXED32,
	"sfixed64": descriptorpb.FieldDescriptorProto_TYPE_SFIXED64,
	"bool":     descriptorpb.FieldDescriptorProto_TYPE_BOOL,
	"string":   descriptorpb.FieldDescriptorProto_TYPE_STRING,
	"bytes":    descriptorpb.FieldDescriptorProto_TYPE_BYTES,
}

type declKind int

const (
	kindMessage declKind = iota + 1
	kindEnum
)

// Load reads a protobufjs JSON schema, such as the liqi.json the game client
// ships, and builds a catalog from it. Failures wrap
// services.ErrConfiguration.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "catalog", "load", path, err)
	}
	catalog, err := FromSchemaJSON(data)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "catalog", "load", path, err)
	}
	catalog.source = path
	return catalog, nil
}

// FromSchemaJSON compiles a protobufjs JSON schema and checks that it
// declares every message and lobby method the downloader uses. When the
// schema's enums cannot be linked as proto3 enums, enum fields fall back to
// plain integers.
func FromSchemaJSON(data []byte) (*Catalog, error) {
	fdp, err := ParseSchemaJSON(data)
	if err != nil {
		return nil, err
	}
	catalog, err := Compile(fdp)
	if err != nil {
		plain, perr := parseSchemaJSON(data, true)
		if perr != nil {
			return nil, err
		}
		if catalog, err = Compile(plain); err != nil {
			return nil, err
		}
	}
	if err := catalog.checkRequired(); err != nil {
		return nil, err
	}
	return catalog, nil
}

// ParseSchemaJSON converts the "lq" namespace of a protobufjs JSON schema
// into an unlinked file descriptor.
func ParseSchemaJSON(data []byte) (*descriptorpb.FileDescriptorProto, error) {
	return parseSchemaJSON(data, false)
}

func parseSchemaJSON(data []byte, enumsAsInts bool) (*descriptorpb.FileDescriptorProto, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.New("schema: invalid JSON")
	}
	ns := gjson.GetBytes(data, "nested."+Package+".nested")
	if !ns.IsObject() {
		return nil, fmt.Errorf("schema: no %q namespace", Package)
	}

	p := &schemaParser{
		kinds:       make(map[string]declKind),
		openEnums:   make(map[string]bool),
		scopeNames:  make(map[string]map[string]bool),
		enumsAsInts: enumsAsInts,
	}
	p.index(Package, ns)

	fdp := &descriptorpb.FileDescriptorProto{
		Name:    proto.String("lq/liqi.proto"),
		Package: proto.String(Package),
		Syntax:  proto.String("proto3"),
	}
	var err error
	ns.ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		switch {
		case value.Get("fields").Exists():
			var dp *descriptorpb.DescriptorProto
			if dp, err = p.message(Package, name, value); err == nil {
				fdp.MessageType = append(fdp.MessageType, dp)
			}
		case value.Get("values").Exists():
			if ep := p.enum(Package, name, value); ep != nil {
				fdp.EnumType = append(fdp.EnumType, ep)
			}
		case value.Get("methods").Exists():
			var sp *descriptorpb.ServiceDescriptorProto
			if sp, err = p.service(Package, name, value); err == nil {
				fdp.Service = append(fdp.Service, sp)
			}
		}
		return err == nil
	})
	if err != nil {
		return nil, err
	}
	return fdp, nil
}

type schemaParser struct {
	kinds       map[string]declKind
	openEnums   map[string]bool
	scopeNames  map[string]map[string]bool
	enumsAsInts bool
}

// index records every message and enum by full name. Enums that cannot be
// linked as proto3 enums are left out of openEnums; their fields become int32.
func (p *schemaParser) index(scope string, nested gjson.Result) {
	nested.ForEach(func(key, value gjson.Result) bool {
		full := scope + "." + key.String()
		switch {
		case value.Get("fields").Exists():
			p.kinds[full] = kindMessage
			p.claim(scope, key.String())
			p.index(full, value.Get("nested"))
		case value.Get("values").Exists():
			p.kinds[full] = kindEnum
			p.claim(scope, key.String())
			if !p.enumsAsInts && p.linkableEnum(scope, value.Get("values")) {
				p.openEnums[full] = true
			}
		}
		return true
	})
}

func (p *schemaParser) claim(scope, name string) bool {
	names := p.scopeNames[scope]
	if names == nil {
		names = make(map[string]bool)
		p.scopeNames[scope] = names
	}
	if names[name] {
		return false
	}
	names[name] = true
	return true
}

// linkableEnum reports whether values has a zero value, no repeated numbers
// and no names already taken in scope. Enum values share their enum's scope.
func (p *schemaParser) linkableEnum(scope string, values gjson.Result) bool {
	numbers := make(map[int64]bool)
	zero := false
	ok := true
	values.ForEach(func(key, value gjson.Result) bool {
		n := value.Int()
		if numbers[n] || !p.claim(scope, key.String()) {
			ok = false
			return false
		}
		numbers[n] = true
		zero = zero || n == 0
		return true
	})
	return ok && zero && len(numbers) > 0
}

func (p *schemaParser) message(scope, name string, def gjson.Result) (*descriptorpb.DescriptorProto, error) {
	full := scope + "." + name
	dp := &descriptorpb.DescriptorProto{Name: proto.String(name)}

	var err error
	def.Get("nested").ForEach(func(key, value gjson.Result) bool {
		switch {
		case value.Get("fields").Exists():
			var nested *descriptorpb.DescriptorProto
			if nested, err = p.message(full, key.String(), value); err == nil {
				dp.NestedType = append(dp.NestedType, nested)
			}
		case value.Get("values").Exists():
			if ep := p.enum(full, key.String(), value); ep != nil {
				dp.EnumType = append(dp.EnumType, ep)
			}
		}
		return err == nil
	})
	if err != nil {
		return nil, err
	}

	def.Get("fields").ForEach(func(key, value gjson.Result) bool {
		var fd *descriptorpb.FieldDescriptorProto
		var entry *descriptorpb.DescriptorProto
		fd, entry, err = p.field(full, key.String(), value)
		if err != nil {
			return false
		}
		dp.Field = append(dp.Field, fd)
		if entry != nil {
			dp.NestedType = append(dp.NestedType, entry)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return dp, nil
}

// field converts one field. Map fields also return their synthetic entry
// message, which must be nested in the same message.
func (p *schemaParser) field(scope, name string, def gjson.Result) (*descriptorpb.FieldDescriptorProto, *descriptorpb.DescriptorProto, error) {
	id := def.Get("id").Int()
	if id <= 0 {
		return nil, nil, fmt.Errorf("schema: %s.%s has no field id", scope, name)
	}
	fd := &descriptorpb.FieldDescriptorProto{
		Name:   proto.String(name),
		Number: proto.Int32(int32(id)),
		Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
	}
	if def.Get("rule").String() == "repeated" {
		fd.Label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()
	}

	keyType := def.Get("keyType").String()
	if keyType == "" {
		if err := p.setType(fd, scope, def.Get("type").String()); err != nil {
			return nil, nil, err
		}
		return fd, nil, nil
	}

	key := &descriptorpb.FieldDescriptorProto{
		Name:   proto.String("key"),
		Number: proto.Int32(1),
		Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
	}
	if err := p.setType(key, scope, keyType); err != nil {
		return nil, nil, err
	}
	value := &descriptorpb.FieldDescriptorProto{
		Name:   proto.String("value"),
		Number: proto.Int32(2),
		Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
	}
	if err := p.setType(value, scope, def.Get("type").String()); err != nil {
		return nil, nil, err
	}
	entryName := mapEntryName(name)
	entry := &descriptorpb.DescriptorProto{
		Name:    proto.String(entryName),
		Field:   []*descriptorpb.FieldDescriptorProto{key, value},
		Options: &descriptorpb.MessageOptions{MapEntry: proto.Bool(true)},
	}
	fd.Label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()
	fd.Type = descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum()
	fd.TypeName = proto.String("." + scope + "." + entryName)
	return fd, entry, nil
}

func (p *schemaParser) setType(fd *descriptorpb.FieldDescriptorProto, scope, typ string) error {
	if kind, ok := scalarTypes[typ]; ok {
		fd.Type = kind.Enum()
		return nil
	}
	full, kind, ok := p.resolve(scope, typ)
	if !ok {
		return fmt.Errorf("schema: %s.%s has unknown type %q", scope, fd.GetName(), typ)
	}
	switch {
	case kind == kindMessage:
		fd.Type = descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum()
		fd.TypeName = proto.String("." + full)
	case p.openEnums[full]:
		fd.Type = descriptorpb.FieldDescriptorProto_TYPE_ENUM.Enum()
		fd.TypeName = proto.String("." + full)
	default:
		fd.Type = descriptorpb.FieldDescriptorProto_TYPE_INT32.Enum()
	}
	return nil
}

// resolve looks a type reference up from the innermost scope outwards, the
// way protobufjs does.
func (p *schemaParser) resolve(scope, ref string) (string, declKind, bool) {
	ref = strings.TrimPrefix(ref, ".")
	for s := scope; ; {
		candidate := ref
		if s != "" {
			candidate = s + "." + ref
		}
		if kind, ok := p.kinds[candidate]; ok {
			return candidate, kind, true
		}
		if s == "" {
			return "", 0, false
		}
		if i := strings.LastIndex(s, "."); i >= 0 {
			s = s[:i]
		} else {
			s = ""
		}
	}
}

func (p *schemaParser) enum(scope, name string, def gjson.Result) *descriptorpb.EnumDescriptorProto {
	if !p.openEnums[scope+"."+name] {
		return nil
	}
	ep := &descriptorpb.EnumDescriptorProto{Name: proto.String(name)}
	def.Get("values").ForEach(func(key, value gjson.Result) bool {
		ev := &descriptorpb.EnumValueDescriptorProto{
			Name:   proto.String(key.String()),
			Number: proto.Int32(int32(value.Int())),
		}
		if ev.GetNumber() == 0 {
			ep.Value = append([]*descriptorpb.EnumValueDescriptorProto{ev}, ep.Value...)
		} else {
			ep.Value = append(ep.Value, ev)
		}
		return true
	})
	return ep
}

func (p *schemaParser) service(scope, name string, def gjson.Result) (*descriptorpb.ServiceDescriptorProto, error) {
	sp := &descriptorpb.ServiceDescriptorProto{Name: proto.String(name)}
	var err error
	def.Get("methods").ForEach(func(key, value gjson.Result) bool {
		in, inKind, inOK := p.resolve(scope, value.Get("requestType").String())
		out, outKind, outOK := p.resolve(scope, value.Get("responseType").String())
		if !inOK || !outOK || inKind != kindMessage || outKind != kindMessage {
			err = fmt.Errorf("schema: %s.%s.%s has unresolved request or response type", scope, name, key.String())
			return false
		}
		sp.Method = append(sp.Method, &descriptorpb.MethodDescriptorProto{
			Name:       proto.String(key.String()),
			InputType:  proto.String("." + in),
			OutputType: proto.String("." + out),
		})
		return true
	})
	if err != nil {
		return nil, err
	}
	return sp, nil
}

// mapEntryName follows protoc's naming of implicit map entry messages.
func mapEntryName(field string) string {
	var b strings.Builder
	upper := true
	for _, r := range field {
		switch {
		case r == '_':
			upper = true
		case upper:
			b.WriteString(strings.ToUpper(string(r)))
			upper = false
		default:
			b.WriteRune(r)
		}
	}
	b.WriteString("Entry")
	return b.String()
}
