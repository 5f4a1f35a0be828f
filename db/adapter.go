package db

import (
	"fmt"

	"github.com/kasuganosora/novelsim/config"
	dbmysql "github.com/kasuganosora/novelsim/db/mysql"
	dbsqlite "github.com/kasuganosora/novelsim/db/sqlite"
	"gorm.io/gorm"
)

const (
	ModeMemory = "memory"
	ModeSQLite = "sqlite"
	ModeMySQL  = "mysql"
)

// Open returns a *gorm.DB for the configured database mode. Memory mode is
// an in-process SQLite database that is lost on exit.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	switch cfg.Mode {
	case ModeMemory:
		return dbsqlite.Open(dbsqlite.MemoryPath)
	case ModeSQLite:
		return dbsqlite.Open(cfg.SQLitePath)
	case ModeMySQL:
		return dbmysql.Open(cfg)
	default:
		return nil, fmt.Errorf("db: unknown mode %q", cfg.Mode)
	}
}
