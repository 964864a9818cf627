package lqproto_test

import (
	"errors"
	"testing"

	"google.golang.org/protobuf/proto"

	"majdl/internal/lqproto"
	"majdl/internal/services"
)

func TestDefaultCatalogLinks(t *testing.T) {
	catalog, err := lqproto.Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	for _, name := range []string{
		"Wrapper", "GameDetailRecords", "RecordNewRound", "RecordDealTile", "RecordDiscardTile",
		"RecordChiPengGang", "RecordAnGangAddGang", "RecordBaBei", "RecordHule", "RecordNoTile",
		"RecordLiuJu", "ResGameRecord", "RecordGame.AccountInfo", "GameEndResult.PlayerItem",
	} {
		if _, err := catalog.Lookup(name); err != nil {
			t.Errorf("Lookup(%q): %v", name, err)
		}
	}
}

func TestLookupAcceptsWirePrefixes(t *testing.T) {
	catalog := lqproto.MustDefault()
	for _, name := range []string{"RecordHule", ".lq.RecordHule", "lq.RecordHule"} {
		mt, err := catalog.Lookup(name)
		if err != nil {
			t.Fatalf("Lookup(%q): %v", name, err)
		}
		if got := string(mt.Descriptor().FullName()); got != "lq.RecordHule" {
			t.Fatalf("Lookup(%q) resolved %s", name, got)
		}
	}
}

func TestLookupUnknown(t *testing.T) {
	_, err := lqproto.MustDefault().Lookup(".lq.RecordNoSuchThing")
	if !errors.Is(err, services.ErrUnknownMessageType) {
		t.Fatalf("expected ErrUnknownMessageType, got %v", err)
	}
}

func TestShortAndWireNames(t *testing.T) {
	if got := lqproto.ShortName(".lq.GameDetailRecords"); got != "GameDetailRecords" {
		t.Fatalf("ShortName = %q", got)
	}
	if got := lqproto.WireName("GameDetailRecords"); got != ".lq.GameDetailRecords" {
		t.Fatalf("WireName = %q", got)
	}
	if got := lqproto.WireName(".lq.Wrapper"); got != ".lq.Wrapper" {
		t.Fatalf("WireName should be idempotent, got %q", got)
	}
}

func TestBuildAndAccessors(t *testing.T) {
	catalog := lqproto.MustDefault()
	data, err := catalog.Marshal("ResGameRecordList", lqproto.Fields{
		"total_count": uint32(2),
		"record_list": []lqproto.Fields{
			{"uuid": "a", "accounts": []lqproto.Fields{{"nickname": "雀士", "seat": 1}}},
			{"uuid": "b"},
		},
	})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	res, err := catalog.New("ResGameRecordList")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := proto.Unmarshal(data, res.Interface()); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got := lqproto.GetUint32(res, "total_count"); got != 2 {
		t.Fatalf("total_count = %d", got)
	}
	records := lqproto.GetMessages(res, "record_list")
	if len(records) != 2 || lqproto.GetString(records[0], "uuid") != "a" || lqproto.GetString(records[1], "uuid") != "b" {
		t.Fatalf("unexpected record list")
	}
	accounts := lqproto.GetMessages(records[0], "accounts")
	if len(accounts) != 1 || lqproto.GetString(accounts[0], "nickname") != "雀士" {
		t.Fatalf("unexpected accounts")
	}
	if lqproto.GetMessage(res, "error") != nil {
		t.Fatal("unset message field should be nil")
	}
}

func TestBuildRejectsUnknownFieldsAndKinds(t *testing.T) {
	catalog := lqproto.MustDefault()
	if _, err := catalog.Build("Wrapper", lqproto.Fields{"nope": "x"}); err == nil {
		t.Fatal("expected unknown field error")
	}
	if _, err := catalog.Build("Wrapper", lqproto.Fields{"name": 7}); err == nil {
		t.Fatal("expected kind mismatch error")
	}
}

func TestLobbyMethods(t *testing.T) {
	catalog := lqproto.MustDefault()
	md, err := catalog.Method("Lobby", "oauth2Login")
	if err != nil {
		t.Fatalf("Method: %v", err)
	}
	if md.Input().Name() != "ReqOauth2Login" || md.Output().Name() != "ResLogin" {
		t.Fatalf("unexpected signature %s -> %s", md.Input().Name(), md.Output().Name())
	}
	if _, err := catalog.Method("Lobby", "nope"); !errors.Is(err, services.ErrUnknownMessageType) {
		t.Fatalf("expected unknown method error, got %v", err)
	}
}

func TestNamesSorted(t *testing.T) {
	names := lqproto.MustDefault().Names()
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Fatalf("names not sorted at %d: %q >= %q", i, names[i-1], names[i])
		}
	}
}
