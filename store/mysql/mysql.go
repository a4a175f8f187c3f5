// Package mysql implements store.Store on MySQL through sqlx. List and
// aggregate queries are built with goqu's mysql dialect.
package mysql

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"bookstore-service/store"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/mysql"
	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

//go:embed schema.sql
var schema string

var dialect = goqu.Dialect("mysql")

const (
	errDuplicateEntry   = 1062
	errRowIsReferenced  = 1451
	errNoReferencedRow  = 1452
	errCheckConstraint  = 3819
	errOutOfRangeValue  = 1264
	errNumericOverflow  = 1690
	defaultMaxOpenConns = 25
)

// Open connects to MySQL and verifies the connection.
func Open(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxOpenConns / 2)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	return db, nil
}

// Migrate creates the tables if they do not exist yet. The DSN must allow
// multi statements.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

type Store struct {
	db   *sqlx.DB
	q    sqlx.ExtContext
	inTx bool
	now  func() time.Time
}

var _ store.Store = (*Store)(nil)

func New(db *sqlx.DB) *Store {
	return &Store{db: db, q: db, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Store) Books() store.Books   { return bookRepo{q: s.q, now: s.now, forUpdate: s.inTx} }
func (s *Store) Users() store.Users   { return userRepo{q: s.q, now: s.now} }
func (s *Store) Orders() store.Orders { return orderRepo{q: s.q, now: s.now, forUpdate: s.inTx} }

func (s *Store) InTx(ctx context.Context, fn func(tx store.Store) error) error {
	if s.inTx {
		return fn(s)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(&Store{db: s.db, q: tx, inTx: true, now: s.now}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// translate maps driver errors onto the store error set.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	var myErr *mysqldriver.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case errDuplicateEntry:
			return fmt.Errorf("%w: %s", store.ErrDuplicate, myErr.Message)
		case errRowIsReferenced:
			return fmt.Errorf("%w: %s", store.ErrReferenced, myErr.Message)
		case errNoReferencedRow:
			return fmt.Errorf("%w: %s", store.ErrNotFound, myErr.Message)
		case errOutOfRangeValue, errNumericOverflow:
			return fmt.Errorf("%w: %s", store.ErrOutOfRange, myErr.Message)
		case errCheckConstraint:
			if strings.Contains(myErr.Message, "chk_books_stock") {
				return fmt.Errorf("%w: %s", store.ErrStockExhausted, myErr.Message)
			}
		}
	}
	return err
}

func toSQL(ds *goqu.SelectDataset) (string, []interface{}, error) {
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return "", nil, fmt.Errorf("build query: %w", err)
	}
	return query, args, nil
}

func count(ctx context.Context, q sqlx.QueryerContext, ds *goqu.SelectDataset) (int, error) {
	query, args, err := toSQL(ds.Select(goqu.COUNT(goqu.Star())))
	if err != nil {
		return 0, err
	}
	var n int
	if err := sqlx.GetContext(ctx, q, &n, query, args...); err != nil {
		return 0, translate(err)
	}
	return n, nil
}
