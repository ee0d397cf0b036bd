// Package connection implements the Connection Manager component.
//
// The Connection Manager:
//   - Owns exactly one WebSocket per notebook session, addressed as
//     {scheme}://{host}/ws/{sessionId}/{notebookId}
//   - Reports status as uninstantiated, connecting, open, closing or closed
//   - Redials the same target with a fixed delay and a bounded number of
//     attempts; exhaustion leaves the manager closed for good
//   - Holds commands sent while recovering and flushes them in order
//   - Delivers inbound frames and status changes one at a time, in order
package connection
