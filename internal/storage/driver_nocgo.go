//go:build !cgo

package storage

import (
	_ "modernc.org/sqlite"
)

const driverName = "sqlite"

// dsn enables WAL, foreign keys and a busy timeout on every pooled connection.
// Transactions begin IMMEDIATE so concurrent writers queue on the busy timeout
// instead of failing on lock upgrade.
func dsn(path string) string {
	return "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_txlock=immediate"
}
