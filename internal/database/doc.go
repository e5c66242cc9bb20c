// Package database manages the PostgreSQL/TimescaleDB pool used by the
// message recorder.
package database
