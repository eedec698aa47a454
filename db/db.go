package db

import (
	"context"
	"database/sql"
	"fmt"

	sqlbuilder "github.com/huandu/go-sqlbuilder"
	log "github.com/sirupsen/logrus"
)

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DB handles all database operations. A DB returned to a WithTx callback runs
// every query inside that transaction.
type DB struct {
	conn     *sql.DB
	q        querier
	flavor   sqlbuilder.Flavor
	postgres bool
}

// NewDB opens the database. Strings starting with postgres:// or
// postgresql:// select PostgreSQL, anything else is an SQLite file path.
func NewDB(database string) (*DB, error) {
	conn, err := connection(database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	db := &DB{
		conn:     conn,
		q:        conn,
		flavor:   sqlbuilder.SQLite,
		postgres: isPostgres(database),
	}
	if db.postgres {
		db.flavor = sqlbuilder.PostgreSQL
	}

	return db, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

// WithTx runs fn inside a transaction. The transaction is committed when fn
// returns nil and rolled back otherwise. Nested calls reuse the outer
// transaction.
func (db *DB) WithTx(ctx context.Context, fn func(tx *DB) error) error {
	if _, ok := db.q.(*sql.Tx); ok {
		return fn(db)
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	txDB := &DB{
		conn:     db.conn,
		q:        tx,
		flavor:   db.flavor,
		postgres: db.postgres,
	}

	if err := fn(txDB); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.WithError(rbErr).Error("Error rolling back transaction")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
