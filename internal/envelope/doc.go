// Package envelope decodes the self-describing Wrapper envelopes used by game
// detail records.
//
// A detail blob is a Wrapper named ".lq.GameDetailRecords" whose payload holds
// an ordered list of inner Wrappers, one per game action. Codec.DecodeDetails
// checks the outer name, resolves each inner name through the lqproto catalog,
// and returns entries tagged with "@type". Inner types missing from the
// catalog become placeholder entries carrying the raw payload.
package envelope
