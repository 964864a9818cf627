package lqproto_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"

	"majdl/internal/lqproto"
	"majdl/internal/services"
)

const sampleSchema = "testdata/liqi_sample.json"

func loadSample(t *testing.T) *lqproto.Catalog {
	t.Helper()
	catalog, err := lqproto.Load(sampleSchema)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return catalog
}

func field(t *testing.T, catalog *lqproto.Catalog, message, name string) protoreflect.FieldDescriptor {
	t.Helper()
	mt, err := catalog.Lookup(message)
	if err != nil {
		t.Fatalf("Lookup(%q): %v", message, err)
	}
	fd := mt.Descriptor().Fields().ByName(protoreflect.Name(name))
	if fd == nil {
		t.Fatalf("%s has no field %s", message, name)
	}
	return fd
}

func TestLoadSchemaJSON(t *testing.T) {
	catalog := loadSample(t)
	if catalog.Source() != sampleSchema {
		t.Fatalf("Source = %q", catalog.Source())
	}
	if lqproto.MustDefault().Source() != lqproto.BundledSource {
		t.Fatalf("bundled Source = %q", lqproto.MustDefault().Source())
	}

	for _, name := range []string{"NotifyRoomGameStart", "RecordGame.AccountInfo", "RecordGame.Tag", "MuyuInfo"} {
		if _, err := catalog.Lookup(name); err != nil {
			t.Errorf("Lookup(%q): %v", name, err)
		}
	}

	accounts := field(t, catalog, "RecordGame", "accounts")
	if !accounts.IsList() || accounts.Message().FullName() != "lq.RecordGame.AccountInfo" {
		t.Fatalf("accounts resolved to %v", accounts.Message().FullName())
	}
	level := field(t, catalog, "RecordGame.AccountInfo", "level")
	if level.Message().FullName() != "lq.AccountLevel" {
		t.Fatalf("level resolved to %v", level.Message().FullName())
	}

	tags := field(t, catalog, "RecordGame", "seat_tags")
	if !tags.IsMap() || tags.MapKey().Kind() != protoreflect.Uint32Kind || tags.MapValue().Message().FullName() != "lq.RecordGame.Tag" {
		t.Fatalf("seat_tags is not a uint32 -> Tag map")
	}

	state := field(t, catalog, "RecordGame", "state")
	if state.Kind() != protoreflect.EnumKind || state.Enum().Values().ByName("READY").Number() != 3 {
		t.Fatalf("state should be the GamePlayerState enum, got %v", state.Kind())
	}
	phase := field(t, catalog, "RecordRoundState", "phase")
	if phase.Kind() != protoreflect.Int32Kind {
		t.Fatalf("enum without a zero value should fall back to int32, got %v", phase.Kind())
	}

	md, err := catalog.Method("Lobby", "fetchGameRecord")
	if err != nil {
		t.Fatalf("Method: %v", err)
	}
	if md.Input().Name() != "ReqGameRecord" || md.Output().Name() != "ResGameRecord" {
		t.Fatalf("unexpected signature %s -> %s", md.Input().Name(), md.Output().Name())
	}
}

func TestLoadedSchemaDecodesFieldsTheBundledOneDoesNot(t *testing.T) {
	catalog := loadSample(t)
	data, err := catalog.Marshal("RecordDealTile", lqproto.Fields{
		"seat":       1,
		"tile":       "5m",
		"tile_state": uint32(1),
		"muyu":       lqproto.Fields{"seat": 2, "count": 3},
	})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	full, err := catalog.New("RecordDealTile")
	if err != nil {
		t.Fatal(err)
	}
	if err := proto.Unmarshal(data, full.Interface()); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(lqproto.Unknown(full)) != 0 {
		t.Fatal("loaded schema should declare every field")
	}
	if got := lqproto.GetUint32(lqproto.GetMessage(full, "muyu"), "count"); got != 3 {
		t.Fatalf("muyu.count = %d", got)
	}

	bundled, err := lqproto.MustDefault().New("RecordDealTile")
	if err != nil {
		t.Fatal(err)
	}
	if err := proto.Unmarshal(data, bundled.Interface()); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	unknown := lqproto.Unknown(bundled)
	if len(unknown) != 1 || unknown[0].Path != "$" {
		t.Fatalf("bundled schema should keep undeclared fields at the root, got %+v", unknown)
	}
}

func TestLoadRejectsIncompleteSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "liqi.json")
	schema := `{"nested":{"lq":{"nested":{"Wrapper":{"fields":{"name":{"type":"string","id":1}}}}}}}`
	if err := os.WriteFile(path, []byte(schema), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := lqproto.Load(path)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if !strings.Contains(err.Error(), "GameDetailRecords") {
		t.Fatalf("error should name the missing message: %v", err)
	}
}

func TestParseSchemaJSONErrors(t *testing.T) {
	tests := map[string]string{
		"invalid json":      `{`,
		"missing namespace": `{"nested":{"other":{"nested":{}}}}`,
		"unknown type":      `{"nested":{"lq":{"nested":{"A":{"fields":{"b":{"type":"Missing","id":1}}}}}}}`,
		"missing id":        `{"nested":{"lq":{"nested":{"A":{"fields":{"b":{"type":"string"}}}}}}}`,
	}
	for name, schema := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := lqproto.ParseSchemaJSON([]byte(schema)); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := lqproto.Load(filepath.Join(t.TempDir(), "missing.json"))
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
