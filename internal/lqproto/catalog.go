package lqproto

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"

	"majdl/internal/services"
)

// Catalog maps message names to concrete message types. Names are accepted
// with or without the ".lq." prefix that appears on the wire.
type Catalog struct {
	file    protoreflect.FileDescriptor
	source  string
	types   map[string]protoreflect.MessageType
	methods map[string]protoreflect.MethodDescriptor
}

// BundledSource is the Source of catalogs built from the compiled-in schema.
const BundledSource = "bundled"

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

// Default returns the catalog built from the bundled lq schema.
func Default() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCatalog, defaultErr = Compile(FileDescriptorProto())
	})
	return defaultCatalog, defaultErr
}

// MustDefault is Default for wiring code that cannot recover from a broken
// bundled schema.
func MustDefault() *Catalog {
	catalog, err := Default()
	if err != nil {
		panic(fmt.Sprintf("lqproto: bundled schema: %v", err))
	}
	return catalog
}

// Compile links fdp and registers every message it declares, nested ones
// included.
func Compile(fdp *descriptorpb.FileDescriptorProto) (*Catalog, error) {
	fd, err := protodesc.NewFile(fdp, nil)
	if err != nil {
		return nil, fmt.Errorf("link schema %s: %w", fdp.GetName(), err)
	}
	return NewCatalog(fd), nil
}

// NewCatalog builds a catalog from an already linked file descriptor.
func NewCatalog(fd protoreflect.FileDescriptor) *Catalog {
	c := &Catalog{
		file:    fd,
		source:  BundledSource,
		types:   make(map[string]protoreflect.MessageType),
		methods: make(map[string]protoreflect.MethodDescriptor),
	}
	c.registerMessages(fd.Messages())
	svcs := fd.Services()
	for i := 0; i < svcs.Len(); i++ {
		svc := svcs.Get(i)
		methods := svc.Methods()
		for j := 0; j < methods.Len(); j++ {
			m := methods.Get(j)
			c.methods[string(svc.Name())+"."+string(m.Name())] = m
		}
	}
	return c
}

// Source names where the schema came from: BundledSource or a file path.
func (c *Catalog) Source() string {
	return c.source
}

// checkRequired verifies that the messages and lobby methods the downloader
// calls are all declared.
func (c *Catalog) checkRequired() error {
	for _, name := range []string{"Wrapper", "GameDetailRecords"} {
		if _, err := c.Lookup(name); err != nil {
			return err
		}
	}
	for _, m := range lobbyMethods {
		if _, err := c.Method("Lobby", m.name); err != nil {
			return err
		}
	}
	return nil
}

func (c *Catalog) registerMessages(messages protoreflect.MessageDescriptors) {
	for i := 0; i < messages.Len(); i++ {
		md := messages.Get(i)
		c.Register(dynamicpb.NewMessageType(md))
		c.registerMessages(md.Messages())
	}
}

// Register adds or replaces a message type. Generated types work as well as
// dynamic ones.
func (c *Catalog) Register(mt protoreflect.MessageType) {
	c.types[ShortName(string(mt.Descriptor().FullName()))] = mt
}

// ShortName strips the wire prefix: ".lq.RecordHule" and "lq.RecordHule"
// both become "RecordHule".
func ShortName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.TrimPrefix(name, ".")
	return strings.TrimPrefix(name, Package+".")
}

// WireName is the inverse of ShortName.
func WireName(name string) string {
	return "." + Package + "." + ShortName(name)
}

// Lookup resolves a message type by name. Unknown names wrap
// services.ErrUnknownMessageType.
func (c *Catalog) Lookup(name string) (protoreflect.MessageType, error) {
	short := ShortName(name)
	if mt, ok := c.types[short]; ok {
		return mt, nil
	}
	return nil, services.Wrap(services.ErrUnknownMessageType, "catalog", "lookup", fmt.Sprintf("no message named %q", short), nil)
}

// New returns an empty message of the named type.
func (c *Catalog) New(name string) (protoreflect.Message, error) {
	mt, err := c.Lookup(name)
	if err != nil {
		return nil, err
	}
	return mt.New(), nil
}

// Names lists every registered message in sorted order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.types))
	for name := range c.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Method resolves a service method such as ("Lobby", "fetchGameRecord").
func (c *Catalog) Method(service, method string) (protoreflect.MethodDescriptor, error) {
	md, ok := c.methods[service+"."+method]
	if !ok {
		return nil, services.Wrap(services.ErrUnknownMessageType, "catalog", "method", fmt.Sprintf("no method %s.%s", service, method), nil)
	}
	return md, nil
}

// Input returns an empty request message for a service method.
func (c *Catalog) Input(md protoreflect.MethodDescriptor) (protoreflect.Message, error) {
	return c.New(string(md.Input().FullName()))
}

// Output returns an empty response message for a service method.
func (c *Catalog) Output(md protoreflect.MethodDescriptor) (protoreflect.Message, error) {
	return c.New(string(md.Output().FullName()))
}
