// Package database provides SQLite connectivity for printwatch.
//
// It manages:
//   - The connection (WAL mode, busy timeout, single-connection pool)
//   - Schema migrations registered from the migrations package
//   - BlobStore, the kv_blobs table backing the message store snapshot
//
// The component history table is created by the same migrations and is
// accessed through printer.SQLiteHistoryRepository.
//
// Security Considerations:
//   - All statements use placeholders
//   - The database file is chmod 0600
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
//	messages := store.New(database.NewBlobStore(db))
//
// Migration Strategy:
//
// Migrations are additive. New columns must be nullable or carry a default,
// and each .up.sql ships with a .down.sql for development rollbacks.
package database
