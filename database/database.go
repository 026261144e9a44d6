package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"food-order-service/config"
	"food-order-service/logger"
)

// DB is the process-wide connection pool opened by InitDB.
var DB *sql.DB

type Dialect string

const (
	MySQL  Dialect = "mysql"
	SQLite Dialect = "sqlite3"
)

// InitDB opens the MySQL pool and applies the schema.
func InitDB(cfg *config.Config) error {
	db, err := sql.Open(string(MySQL), cfg.DSN())
	if err != nil {
		return fmt.Errorf("open mysql: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("ping mysql: %w", err)
	}
	if err := Migrate(ctx, db, MySQL); err != nil {
		db.Close()
		return err
	}

	DB = db
	logger.App().WithField("host", cfg.DBHost).Info("database connected")
	return nil
}

func CloseDB() {
	if DB == nil {
		return
	}
	if err := DB.Close(); err != nil {
		logger.App().WithError(err).Warn("close database")
	}
}

// Migrate creates missing tables and indexes.
func Migrate(ctx context.Context, db *sql.DB, dialect Dialect) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	for _, idx := range indexes {
		stmt := fmt.Sprintf("CREATE INDEX %s ON %s (%s)", idx.name, idx.table, idx.columns)
		if dialect == SQLite {
			stmt = fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)", idx.name, idx.table, idx.columns)
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			if isDuplicateKeyName(err) {
				continue
			}
			return fmt.Errorf("migrate index %s: %w", idx.name, err)
		}
	}
	return nil
}

// isDuplicateKeyName matches MySQL error 1061, raised when an index exists.
func isDuplicateKeyName(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1061
}
