// Package lqproto carries the "lq" protobuf schema spoken by the game lobby and
// embedded in game detail records.
//
// The schema is declared in Go as descriptors and linked at startup into a
// Catalog, the name-keyed registry that the envelope decoder and the lobby RPC
// client use to turn wire type names into message types. Messages are dynamic
// (dynamicpb), so adding a record action is a one-line schema change.
package lqproto
