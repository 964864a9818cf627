// Package pipeline drives each game record through its processing stages:
// listed, fetched, detailed and decoded.
//
// Stages only ever advance and every stage checks the record document before
// doing work, so rerunning a batch resumes where the previous run stopped and
// repeats nothing that already completed. Failures confined to one record
// are collected in the Report and the batch continues; transport,
// authentication and configuration failures halt the batch.
package pipeline
