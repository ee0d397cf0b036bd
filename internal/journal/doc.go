// Package journal records protocol traffic for auditing.
//
// A Recorder sees every outbound command and inbound frame of a session.
// Writer batches entries into PostgreSQL using pgx.Batch, flushing on batch
// size or on a fixed interval. Nop discards everything.
//
// Recording never blocks the caller: when the Writer's buffer is full the
// entry is dropped and counted.
package journal
