// Package recorder batch-writes stream messages to PostgreSQL/TimescaleDB.
//
// Messages are queued from channel handlers without blocking, drained by a
// single consumer and flushed with COPY when the batch is full or the flush
// interval elapses. Storage is append-only; every row gets a fresh UUID.
package recorder
