// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/vinovest/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrNotFound is returned when a record is not found or has expired.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique column already holds the value.
	ErrDuplicate = errors.New("record already exists")
	// ErrConflict is returned when a record changed since it was read.
	ErrConflict = errors.New("record was modified concurrently")
)

// DuplicateError names the column whose unique constraint was violated.
// It matches ErrDuplicate with errors.Is.
type DuplicateError struct {
	Err    error
	Column string
}

func (e *DuplicateError) Error() string {
	return "duplicate " + e.Column + ": " + e.Err.Error()
}

func (e *DuplicateError) Is(target error) bool {
	return target == ErrDuplicate
}

func (e *DuplicateError) Unwrap() error {
	return e.Err
}

// DefaultResetTTL is how long a password reset token stays valid.
const DefaultResetTTL = 10 * time.Minute

// Repository provides access to users, reset tokens and polls.
type Repository struct {
	db       *sqlx.DB
	now      func() time.Time
	resetTTL time.Duration
}

// Option configures a Repository.
type Option func(*Repository)

// WithResetTTL overrides the reset token lifetime.
func WithResetTTL(ttl time.Duration) Option {
	return func(r *Repository) {
		if ttl > 0 {
			r.resetTTL = ttl
		}
	}
}

// New creates a new Repository instance.
func New(db *sqlx.DB, opts ...Option) *Repository {
	r := &Repository{
		db:       db,
		now:      time.Now,
		resetTTL: DefaultResetTTL,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DB returns the underlying sqlx DB for direct access.
func (r *Repository) DB() *sqlx.DB {
	return r.db
}

// SetClock replaces the time source used for expiry checks.
func (r *Repository) SetClock(now func() time.Time) {
	r.now = now
}

// Now returns the current time of the repository clock in UTC.
func (r *Repository) Now() time.Time {
	return r.now().UTC()
}

// ResetTTL returns the reset token lifetime.
func (r *Repository) ResetTTL() time.Duration {
	return r.resetTTL
}

// wrapError converts driver errors to repository errors.
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return &DuplicateError{Column: constraintColumn(sqliteErr.Error()), Err: err}
		}
	}
	return err
}

// constraintColumn extracts "email" from a driver message such as
// "constraint failed: UNIQUE constraint failed: users.email (2067)".
func constraintColumn(msg string) string {
	const marker = "constraint failed: "
	i := strings.LastIndex(msg, marker)
	if i < 0 {
		return ""
	}
	fields := strings.FieldsFunc(msg[i+len(marker):], func(r rune) bool {
		return r == ',' || r == ' '
	})
	if len(fields) == 0 {
		return ""
	}
	_, column, _ := strings.Cut(fields[0], ".")
	return column
}

// inTx runs fn in a transaction and commits if fn returns nil.
func (r *Repository) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func unixOrNull(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}

func fromUnix(v sql.NullInt64) time.Time {
	if !v.Valid {
		return time.Time{}
	}
	return time.Unix(v.Int64, 0).UTC()
}
