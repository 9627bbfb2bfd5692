package main

import (
	"context"
	"database/sql"
	"log"
	"time"

	"parley/internal/chat"
	chatdb "parley/internal/db/chat"
)

var openMessageDB = func(driver, dsn string) (*sql.DB, error) {
	return sql.Open(driver, dsn)
}

// buildMessageStore wires the store against Postgres when a DSN is provided,
// falling back to the in-memory store so the gateway can run without a
// database in development.
func buildMessageStore(ctx context.Context, dsn string, logf func(format string, args ...any)) (chat.Store, func()) {
	if logf == nil {
		logf = log.Printf
	}

	cleanup := func() {}
	var store chat.Store = chat.NewInMemoryStore()

	if dsn != "" {
		sqlDB, err := openMessageDB("pgx", dsn)
		if err != nil {
			logf("postgres open failed, falling back to in-memory store: %v", err)
		} else {
			setupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()

			pg, err := chatdb.NewPostgresStoreWithSchema(setupCtx, sqlDB)
			if err != nil {
				logf("postgres init failed, falling back to in-memory store: %v", err)
				_ = sqlDB.Close()
			} else {
				logf("postgres message store enabled")
				store = pg
				cleanup = func() {
					if err := sqlDB.Close(); err != nil {
						logf("close postgres: %v", err)
					}
				}
			}
		}
	}

	return store, cleanup
}
