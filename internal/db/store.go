package db

import (
	"context"
	"database/sql"
	"fmt"
)

// Repos groups the repositories bound to one connection or transaction.
type Repos struct {
	Users UserRepositoryInterface
	Tasks TaskRepositoryInterface
}

func newRepos(conn DBTX, driverName string) Repos {
	return Repos{
		Users: NewUserRepository(conn),
		Tasks: NewTaskRepository(conn, driverName),
	}
}

// Store owns the pool. Reads go straight to the pool; writes go through WithTx.
type Store struct {
	conn   *sql.DB
	driver string
	Repos
}

func NewStore(conn *sql.DB, driverName string) *Store {
	return &Store{conn: conn, driver: driverName, Repos: newRepos(conn, driverName)}
}

// Open connects and makes sure the schema exists.
func Open(ctx context.Context, driverName, dsn string) (*Store, error) {
	conn, err := Connect(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", driverName, err)
	}
	if err := Migrate(ctx, conn, driverName); err != nil {
		conn.Close()
		return nil, err
	}
	return NewStore(conn, driverName), nil
}

func (s *Store) DB() *sql.DB {
	return s.conn
}

func (s *Store) Driver() string {
	return s.driver
}

func (s *Store) Close() error {
	return s.conn.Close()
}

// WithTx runs fn inside a transaction. It commits when fn returns nil and
// rolls back when fn fails or panics.
func (s *Store) WithTx(ctx context.Context, fn func(repos Repos) error) (err error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(newRepos(tx, s.driver)); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
