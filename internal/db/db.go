package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// sqliteDriverName is go-sqlite3 with ulower() registered on every
// connection. The built-in LOWER only folds ASCII letters.
const sqliteDriverName = "sqlite3_tracker"

func init() {
	sql.Register(sqliteDriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("ulower", strings.ToLower, true)
		},
	})
}

// lowerFunc names the SQL function that lowercases with Unicode rules.
func lowerFunc(driverName string) string {
	if driverName == DriverSQLite {
		return "ulower"
	}
	return "LOWER"
}

// Connect opens a pool for driverName and verifies it with a ping.
func Connect(driverName, dsn string) (*sql.DB, error) {
	if _, ok := schemas[driverName]; !ok {
		return nil, fmt.Errorf("unsupported database driver %q", driverName)
	}
	openName := driverName
	if driverName == DriverSQLite {
		openName = sqliteDriverName
	}
	db, err := sql.Open(openName, dsn)
	if err != nil {
		return nil, err
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	return db, nil
}

// DBTX is satisfied by both *sql.DB and *sql.Tx, so repositories can run
// on the pool or inside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteDSN builds a file DSN with foreign keys enforced and writers
// serialized through immediate transactions.
func SQLiteDSN(path string) string {
	return fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000&_txlock=immediate", path)
}

// PostgresDSN builds a lib/pq key/value DSN.
func PostgresDSN(host, port, user, password, dbname string) string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		host, user, password, dbname, port)
}
