// Package session binds one notebook view to its kernel connection.
//
// A Session owns the connection manager and the dispatcher, and mutates the
// caller's notebook.Store in response to kernel events. Operations without a
// business key in their reply (save, load, deploy, connector setup) are
// serialized per kind: a second call while one is outstanding fails with
// ErrOperationPending.
package session
