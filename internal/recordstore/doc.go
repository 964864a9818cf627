// Package recordstore persists one JSON document per game record and derives
// each record's pipeline stage from the fields present in it.
//
// Documents are written atomically (temp file plus rename) so an interrupted
// run leaves either the previous or the new version on disk, never a partial
// one. Raw protobuf dumps live in an optional sibling directory.
package recordstore
