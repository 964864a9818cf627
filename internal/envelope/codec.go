package envelope

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"

	"majdl/internal/logging"
	"majdl/internal/lqproto"
	"majdl/internal/services"
)

// DetailRecordsType is the outer envelope name of a game detail blob.
const DetailRecordsType = ".lq.GameDetailRecords"

const stageName = "decode"

// Envelope is a self-describing message: a wire type name plus the encoded
// message bytes.
type Envelope struct {
	Name    string
	Payload []byte
}

// Codec decodes nested envelopes against a Catalog.
type Codec struct {
	catalog *lqproto.Catalog
	logger  *slog.Logger
	json    protojson.MarshalOptions
}

// NewCodec constructs a codec. A nil catalog selects the bundled schema.
func NewCodec(catalog *lqproto.Catalog, logger *slog.Logger) *Codec {
	if catalog == nil {
		catalog = lqproto.MustDefault()
	}
	return &Codec{
		catalog: catalog,
		logger:  logging.NewComponentLogger(logger, "envelope"),
	}
}

// Catalog exposes the registry the codec resolves against.
func (c *Codec) Catalog() *lqproto.Catalog {
	return c.catalog
}

// Decode parses blob as a Wrapper.
func (c *Codec) Decode(blob []byte) (Envelope, error) {
	wrapper, err := c.catalog.New("Wrapper")
	if err != nil {
		return Envelope{}, err
	}
	if err := proto.Unmarshal(blob, wrapper.Interface()); err != nil {
		return Envelope{}, services.Wrap(services.ErrValidation, stageName, "wrapper", "malformed envelope", err)
	}
	return Envelope{
		Name:    lqproto.GetString(wrapper, "name"),
		Payload: lqproto.GetBytes(wrapper, "data"),
	}, nil
}

// Encode serializes an envelope as a Wrapper.
func (c *Codec) Encode(env Envelope) ([]byte, error) {
	return c.catalog.Marshal("Wrapper", lqproto.Fields{"name": env.Name, "data": env.Payload})
}

// Open decodes blob and requires its type name to equal want exactly.
func (c *Codec) Open(blob []byte, want string) (Envelope, error) {
	env, err := c.Decode(blob)
	if err != nil {
		return Envelope{}, err
	}
	if env.Name != want {
		return Envelope{}, services.Wrap(services.ErrEnvelopeMismatch, stageName, "open",
			fmt.Sprintf("expected %s, got %q", want, env.Name), nil)
	}
	return env, nil
}

// Resolve looks up the envelope's type and renders its payload as an Entry.
// The entry type is the name with the ".lq." prefix stripped.
func (c *Codec) Resolve(ctx context.Context, env Envelope) (Entry, error) {
	entry, unknown, err := c.resolve(env)
	if err != nil {
		return Entry{}, err
	}
	if len(unknown) > 0 {
		c.warnUnknown(ctx, []string{entry.Type}, len(unknown))
	}
	return entry, nil
}

func (c *Codec) resolve(env Envelope) (Entry, []lqproto.UnknownField, error) {
	name := lqproto.ShortName(env.Name)
	msg, err := c.catalog.New(name)
	if err != nil {
		return Entry{}, nil, err
	}
	if err := proto.Unmarshal(env.Payload, msg.Interface()); err != nil {
		return Entry{}, nil, services.Wrap(services.ErrValidation, stageName, "resolve", fmt.Sprintf("malformed %s payload", name), err)
	}
	data, unknown, err := c.render(msg)
	if err != nil {
		return Entry{}, nil, err
	}
	entry, err := NewEntry(name, data)
	if err != nil {
		return Entry{}, nil, err
	}
	return entry, unknown, nil
}

// Unwrap treats container as a repeated-bytes holder (GameDetailRecords) and
// resolves every element in order. Unknown element types become placeholder
// entries so one unrecognised action does not lose the rest of the record.
func (c *Codec) Unwrap(ctx context.Context, container Envelope) ([]Entry, error) {
	holder, err := c.catalog.New(container.Name)
	if err != nil {
		return nil, err
	}
	if err := proto.Unmarshal(container.Payload, holder.Interface()); err != nil {
		return nil, services.Wrap(services.ErrValidation, stageName, "unwrap",
			fmt.Sprintf("malformed %s payload", lqproto.ShortName(container.Name)), err)
	}
	blobs := lqproto.GetBytesList(holder, "records")

	entries := make([]Entry, 0, len(blobs))
	carriers := make(map[string]struct{})
	unknownCount := 0
	if unknown := lqproto.Unknown(holder); len(unknown) > 0 {
		carriers[lqproto.ShortName(container.Name)] = struct{}{}
		unknownCount += len(unknown)
	}
	for i, blob := range blobs {
		inner, err := c.Decode(blob)
		if err != nil {
			return nil, fmt.Errorf("record entry %d: %w", i, err)
		}
		entry, unknown, err := c.resolve(inner)
		if len(unknown) > 0 {
			carriers[entry.Type] = struct{}{}
			unknownCount += len(unknown)
		}
		if errors.Is(err, services.ErrUnknownMessageType) {
			logging.WarnWithContext(logging.WithContext(ctx, c.logger), "unknown record action type", "unknown_message_type",
				logging.String("message_type", inner.Name),
				logging.Int("entry_index", i),
				logging.String(logging.FieldErrorHint, services.Hint(err)),
				logging.String(logging.FieldImpact, "entry stored as an unresolved placeholder"),
			)
			entry, err = c.placeholder(inner)
		}
		if err != nil {
			return nil, fmt.Errorf("record entry %d: %w", i, err)
		}
		entries = append(entries, entry)
	}
	if unknownCount > 0 {
		types := make([]string, 0, len(carriers))
		for name := range carriers {
			types = append(types, name)
		}
		sort.Strings(types)
		c.warnUnknown(ctx, types, unknownCount)
	}
	return entries, nil
}

// DecodeDetails opens a base64-decoded detail blob, checks that it is a
// GameDetailRecords envelope and unwraps every action.
func (c *Codec) DecodeDetails(ctx context.Context, blob []byte) ([]Entry, error) {
	env, err := c.Open(blob, DetailRecordsType)
	if err != nil {
		return nil, err
	}
	return c.Unwrap(ctx, env)
}

// MessageJSON renders any message the way entries are rendered, without a
// type tag. Wire data for undeclared fields is kept under UnknownKey.
func (c *Codec) MessageJSON(ctx context.Context, msg protoreflect.Message) ([]byte, error) {
	data, unknown, err := c.render(msg)
	if err != nil {
		return nil, err
	}
	if len(unknown) > 0 {
		c.warnUnknown(ctx, []string{lqproto.ShortName(string(msg.Descriptor().FullName()))}, len(unknown))
	}
	return data, nil
}

// render marshals msg to compact JSON and appends the UnknownKey member when
// msg or any nested message carries undeclared fields.
func (c *Codec) render(msg protoreflect.Message) ([]byte, []lqproto.UnknownField, error) {
	data, err := c.json.Marshal(msg.Interface())
	if err != nil {
		return nil, nil, fmt.Errorf("render %s: %w", msg.Descriptor().FullName(), err)
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, data); err != nil {
		return nil, nil, fmt.Errorf("render %s: %w", msg.Descriptor().FullName(), err)
	}
	unknown := lqproto.Unknown(msg)
	if len(unknown) == 0 {
		return compact.Bytes(), nil, nil
	}
	value, err := unknownJSON(unknown)
	if err != nil {
		return nil, nil, err
	}
	return appendMember(compact.Bytes(), UnknownKey, value), unknown, nil
}

func unknownJSON(fields []lqproto.UnknownField) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := marshalString(f.Path)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteString(`:"`)
		buf.WriteString(base64.StdEncoding.EncodeToString(f.Raw))
		buf.WriteByte('"')
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (c *Codec) warnUnknown(ctx context.Context, types []string, count int) {
	logging.WarnWithContext(logging.WithContext(ctx, c.logger), "message fields missing from the schema", "unknown_fields",
		logging.String("message_types", strings.Join(types, ",")),
		logging.Int("unknown_field_sets", count),
		logging.String("schema", c.catalog.Source()),
		logging.String(logging.FieldErrorHint, "run majdl schema fetch to load the full client schema"),
		logging.String(logging.FieldImpact, "undeclared fields kept as base64 under "+UnknownKey),
	)
}

func (c *Codec) placeholder(env Envelope) (Entry, error) {
	fields := fmt.Sprintf(`{%q:true,"data":%q}`, UnresolvedKey, base64.StdEncoding.EncodeToString(env.Payload))
	return NewEntry(lqproto.ShortName(env.Name), []byte(fields))
}
