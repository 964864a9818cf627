// Package ledger implements the memoization ledger: an append-only,
// newline-delimited file of record IDs that have already been downloaded,
// consulted to skip network fetches across runs even after the documents have
// been moved elsewhere.
package ledger
