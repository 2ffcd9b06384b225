// Package relay holds the in-memory connection registry and the
// per-connection session loop that speaks the envelope protocol.
//
// The Registry maps connection keys to live duplex channels and supports
// targeted send and broadcast; it is process-local and safe for
// concurrent use. Every channel funnels its outbound traffic through a
// buffered queue drained by a single write pump, so registry callers and
// the session goroutine never touch the connection's write side
// concurrently. A Session owns one connection for its lifetime: it reads
// envelopes in strict receipt order, claims device identities for
// "request" messages, acknowledges "report" messages, and guarantees its
// channel is unregistered on every exit path without disturbing a
// replacement registered under the same key.
package relay
