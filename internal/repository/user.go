// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/vinovest/sqlx"

	"codeberg.org/oliverandrich/votany/internal/models"
)

type userRow struct { //nolint:govet // fieldalignment: readability over optimization
	ID              string         `db:"id"`
	ScreenName      string         `db:"screen_name"`
	Email           string         `db:"email"`
	PassSalt        string         `db:"pass_salt"`
	PassHash        string         `db:"pass_hash"`
	Verified        bool           `db:"verified"`
	VerifyIDHash    sql.NullString `db:"verify_id_hash"`
	VerifyExpiresAt sql.NullInt64  `db:"verify_expires_at"`
	RegisteredAt    int64          `db:"registered_at"`
	Following       string         `db:"following"`
}

func (row *userRow) toModel() (*models.User, error) {
	user := &models.User{
		ID:              row.ID,
		ScreenName:      row.ScreenName,
		Email:           row.Email,
		PassSalt:        row.PassSalt,
		PassHash:        row.PassHash,
		Verified:        row.Verified,
		VerifyIDHash:    row.VerifyIDHash.String,
		VerifyExpiresAt: fromUnix(row.VerifyExpiresAt),
		RegisteredAt:    fromUnix(sql.NullInt64{Int64: row.RegisteredAt, Valid: true}),
		Following:       []string{},
	}
	if err := json.Unmarshal([]byte(row.Following), &user.Following); err != nil {
		return nil, fmt.Errorf("decode following of user %s: %w", row.ID, err)
	}
	return user, nil
}

// liveUser matches verified users and unverified users still inside their deadline.
const liveUser = `(verified = 1 OR verify_expires_at > ?)`

func (r *Repository) getUser(ctx context.Context, column, value string) (*models.User, error) {
	var row userRow
	query := `SELECT * FROM users WHERE ` + column + ` = ? AND ` + liveUser
	if err := r.db.GetContext(ctx, &row, query, value, r.Now().Unix()); err != nil {
		return nil, wrapError(err)
	}
	return row.toModel()
}

// GetUserByID retrieves a user by ID.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return r.getUser(ctx, "id", id)
}

// GetUserByScreenName retrieves a user by screen name.
func (r *Repository) GetUserByScreenName(ctx context.Context, screenName string) (*models.User, error) {
	return r.getUser(ctx, "screen_name", screenName)
}

// GetUserByEmail retrieves a user by email address.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getUser(ctx, "email", email)
}

// CreateUser inserts a new user. Expired unverified accounts holding the
// same screen name or email are removed first so their names become free.
func (r *Repository) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := r.Now()
	if user.RegisteredAt.IsZero() {
		user.RegisteredAt = now
	}
	if user.Following == nil {
		user.Following = []string{}
	}
	following, err := json.Marshal(user.Following)
	if err != nil {
		return err
	}

	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM users WHERE verified = 0 AND verify_expires_at <= ? AND (screen_name = ? OR email = ?)`,
			now.Unix(), user.ScreenName, user.Email); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx,
			`INSERT INTO users (id, screen_name, email, pass_salt, pass_hash, verified,
				verify_id_hash, verify_expires_at, registered_at, following)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			user.ID, user.ScreenName, user.Email, user.PassSalt, user.PassHash, user.Verified,
			nullString(user.VerifyIDHash), unixOrNull(user.VerifyExpiresAt), user.RegisteredAt.Unix(),
			string(following))
		return wrapError(err)
	})
}

// VerifyUser marks the unexpired unverified user holding verifyIDHash as
// verified and clears the verification fields in one statement.
func (r *Repository) VerifyUser(ctx context.Context, verifyIDHash string) (*models.User, error) {
	var row userRow
	err := r.db.GetContext(ctx, &row,
		`UPDATE users SET verified = 1, verify_id_hash = NULL, verify_expires_at = NULL
		WHERE verify_id_hash = ? AND verified = 0 AND verify_expires_at > ?
		RETURNING *`,
		verifyIDHash, r.Now().Unix())
	if err != nil {
		return nil, wrapError(err)
	}
	return row.toModel()
}

// UpdateUser persists all mutable fields of user.
func (r *Repository) UpdateUser(ctx context.Context, user *models.User) error {
	following, err := json.Marshal(user.Following)
	if err != nil {
		return err
	}
	if user.Following == nil {
		following = []byte("[]")
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET screen_name = ?, email = ?, pass_salt = ?, pass_hash = ?, verified = ?,
			verify_id_hash = ?, verify_expires_at = ?, following = ?
		WHERE id = ?`,
		user.ScreenName, user.Email, user.PassSalt, user.PassHash, user.Verified,
		nullString(user.VerifyIDHash), unixOrNull(user.VerifyExpiresAt), string(following), user.ID)
	if err != nil {
		return wrapError(err)
	}
	return requireRow(result)
}

// DeleteUser deletes a user by ID.
func (r *Repository) DeleteUser(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// DeleteExpiredUsers removes unverified users past their deadline.
func (r *Repository) DeleteExpiredUsers(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM users WHERE verified = 0 AND verify_expires_at <= ?`, r.Now().Unix())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
