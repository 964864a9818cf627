// Package lobby talks to the game lobby: it discovers a websocket gateway
// from the public version and config documents, frames protobuf RPCs over
// the websocket, logs in with a stored token or interactive credentials and
// exposes the two record calls the downloader needs.
//
// Record ids are listed a page at a time with Session.ListRecords and each
// record is fetched with Session.FetchRecord, which returns the response both
// rendered as JSON and as the raw wire bytes.
package lobby
