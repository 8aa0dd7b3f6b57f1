// Package audit carries security events from the Engine to their sinks.
//
// A [Dispatcher] buffers events and relays them on its own goroutine, so
// sink latency never reaches the request path. Sinks write JSON lines,
// zerolog entries or Kafka messages.
//
// The package does not decide which events to emit; that belongs to the
// Engine.
package audit
