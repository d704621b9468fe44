//go:build cgo

package storage

import (
	_ "github.com/mattn/go-sqlite3"
)

const driverName = "sqlite3"

// dsn enables WAL, foreign keys and a busy timeout on every pooled connection.
// Transactions begin IMMEDIATE so concurrent writers queue on the busy timeout
// instead of failing on lock upgrade.
func dsn(path string) string {
	return "file:" + path + "?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on&_txlock=immediate"
}
