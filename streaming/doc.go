// Package streaming implements the real-time notification gateway: it
// accepts websocket and SSE connections, authenticates them, tracks each
// client's stream subscriptions, and forwards domain events from the bus as
// typed wire frames.
//
// Each connection is an independent sequential actor owning its
// subscription registry and mailbox. Frames derived from bus events are
// emitted in mailbox order, at most one frame push per loop pass; when one
// event yields several frames the remainder queue in a bounded outbound
// buffer. Missed events are not replayed; reconnection is a client
// responsibility.
package streaming
