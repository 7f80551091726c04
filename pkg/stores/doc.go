// Package stores provides model stores that persist factory records.
//
// A model store binds model names to canonical model ids and accepts
// attribute sets for bound models. Three implementations are available:
//
//   - MemoryStore keeps records in process, for unit tests.
//   - SQLiteStore uses modernc.org/sqlite with embedded migrations.
//   - PostgresStore uses pgx through database/sql with JSONB rows.
//
// Count and Truncate inspect and clear a bound model's records without
// dropping the binding. Open selects one from a Config. Records are stored as JSON documents, so a
// record read back through Records carries JSON types (float64 numbers).
package stores
