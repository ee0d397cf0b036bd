// Package dispatch decodes inbound kernel frames and invokes the one handler
// registered for each event type.
//
// Frames that fail to decode never reach callers: error-shaped frames are
// routed to the error handler, everything else is logged and dropped.
package dispatch
