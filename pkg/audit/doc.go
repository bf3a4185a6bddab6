// Package audit records who did what for operator-initiated actions such as
// bulk sends. Events go to a Storage: MemoryStorage for tests, LogStorage to
// emit them through slog, or a database-backed implementation.
package audit
