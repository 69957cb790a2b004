// Package sqlite contains SQLite repository implementations for captured
// scans and the mesh runs reconstructed from them.
//
// SQL lives here rather than in the reconstruction layers (L1-L5), which
// stay pure functions over in-memory values. The stores take a *sql.DB so
// tests can open a throwaway database through internal/db.
package sqlite
