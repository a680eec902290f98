package db

import (
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// Connect opens the database. An empty DSN selects an embedded in-memory
// SQLite database (the process owns all state; nothing survives a restart).
// A "file:" or *.db DSN opens SQLite on disk, anything else is treated as a
// MySQL DSN.
func Connect(dsn string) (*gorm.DB, error) {
	var dial gorm.Dialector
	switch {
	case dsn == "":
		dial = sqlite.Open("file::memory:?cache=shared")
	case strings.HasPrefix(dsn, "file:") || strings.HasSuffix(dsn, ".db"):
		dial = sqlite.Open(dsn)
	default:
		dial = mysql.Open(dsn)
	}
	return gorm.Open(dial, &gorm.Config{})
}
