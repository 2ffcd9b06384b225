// Package telemetry persists device reports pushed over the HTTP report
// endpoint. Reports are write-only from the relay's point of view: rows
// are appended to SQLite for offline analysis, and optionally shadowed
// to a time-series metric sink.
package telemetry
