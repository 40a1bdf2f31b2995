// Package service is the single write entry point of the engine. It
// sequences commands, logs them to the entry WAL, runs them against the
// in-memory books, hands their events to the outbox, and checkpoints the
// books to the state store.
//
// It is decoupled from network transports like gRPC.
package service
