package testsupport

import (
	"testing"

	"majdl/internal/lqproto"
)

// Action is one entry of a synthetic detail record.
type Action struct {
	Type   string
	Fields lqproto.Fields
}

// Wrap serializes a Wrapper envelope.
func Wrap(t testing.TB, name string, payload []byte) []byte {
	t.Helper()

	data, err := lqproto.MustDefault().Marshal("Wrapper", lqproto.Fields{"name": name, "data": payload})
	if err != nil {
		t.Fatalf("wrap %s: %v", name, err)
	}
	return data
}

// Message serializes a message from the bundled schema.
func Message(t testing.TB, name string, fields lqproto.Fields) []byte {
	t.Helper()

	data, err := lqproto.MustDefault().Marshal(name, fields)
	if err != nil {
		t.Fatalf("marshal %s: %v", name, err)
	}
	return data
}

// DetailBlob builds a complete detail blob: an outer GameDetailRecords
// envelope holding one inner envelope per action.
func DetailBlob(t testing.TB, actions ...Action) []byte {
	t.Helper()

	records := make([][]byte, 0, len(actions))
	for _, action := range actions {
		records = append(records, Wrap(t, lqproto.WireName(action.Type), Message(t, action.Type, action.Fields)))
	}
	return ContainerBlob(t, ".lq.GameDetailRecords", records...)
}

// ContainerBlob wraps already-encoded inner envelopes under an arbitrary outer
// name, for mismatch and unknown-type cases.
func ContainerBlob(t testing.TB, outerName string, records ...[]byte) []byte {
	t.Helper()

	container := Message(t, "GameDetailRecords", lqproto.Fields{"records": records})
	return Wrap(t, outerName, container)
}

// SampleActions is a short but representative round.
func SampleActions() []Action {
	return []Action{
		{Type: "RecordNewRound", Fields: lqproto.Fields{
			"chang": 0, "ju": 1, "scores": []int32{25000, 25000, 25000, 25000},
			"tiles0": []string{"1m", "2m", "3m"}, "dora": "5z",
		}},
		{Type: "RecordDealTile", Fields: lqproto.Fields{"seat": 1, "tile": "7p", "left_tile_count": 69}},
		{Type: "RecordDiscardTile", Fields: lqproto.Fields{"seat": 1, "tile": "7p", "moqie": true}},
		{Type: "RecordDealTile", Fields: lqproto.Fields{"seat": 2, "tile": "9s", "left_tile_count": 68}},
		{Type: "RecordHule", Fields: lqproto.Fields{
			"hules": []lqproto.Fields{{
				"seat": 2, "zimo": true, "hu_tile": "9s",
				"fans": []lqproto.Fields{{"name": "門前清自摸和", "val": 1, "id": 1}},
			}},
			"delta_scores": []int32{-1000, -500, 2000, -500},
		}},
	}
}
