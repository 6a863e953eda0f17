// Package store provides the SQLite-backed record store adapter.
//
// A Store wraps one store file. kindred keeps two of them side by side in
// the data directory, one per Role, and never lets them share a file:
//   - local.sqlite: the local-only durable store
//   - remote-sync.sqlite: the store an external sync service replicates
//
// # Writes
//
// Every mutation goes through a Session (unit of work). Staging an
// operation marks the session dirty; Save flushes all staged operations in
// one transaction. Failures surface as *PersistenceError and the staged
// operations are kept, so the caller may retry Save or Discard.
//
// # Reads
//
// Fetch and Scan page through a table by identifier (keyset pagination)
// with a bounded page size, so large histories never load in one query.
//
// # Opening
//
// Open checks PRAGMA user_version before touching the schema. A file written
// by a newer schema, or a file that is not a SQLite database, yields a
// *StoreOpenError with Incompatible set. OpenWithRecovery deletes that one
// file and retries exactly once.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
