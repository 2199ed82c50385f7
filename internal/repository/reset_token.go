// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"errors"
	"time"

	"github.com/vinovest/sqlx"

	"codeberg.org/oliverandrich/votany/internal/models"
)

type resetTokenRow struct { //nolint:govet // fieldalignment: readability over optimization
	AuthenticateIDHash string `db:"authenticate_id_hash"`
	Email              string `db:"email"`
	Authenticated      bool   `db:"authenticated"`
	Expended           bool   `db:"expended"`
	IssuedAt           int64  `db:"issued_at"`
}

func (row *resetTokenRow) toModel() *models.ResetToken {
	return &models.ResetToken{
		AuthenticateIDHash: row.AuthenticateIDHash,
		Email:              row.Email,
		Authenticated:      row.Authenticated,
		Expended:           row.Expended,
		IssuedAt:           time.UnixMilli(row.IssuedAt).UTC(),
	}
}

// resetCutoff is the oldest issue time that is still valid, exclusive.
// Issue times are stored in Unix milliseconds.
func (r *Repository) resetCutoff() int64 {
	return r.Now().Add(-r.resetTTL).UnixMilli()
}

// CreateResetToken stores a new token and drops any earlier token for the
// same email address.
func (r *Repository) CreateResetToken(ctx context.Context, token *models.ResetToken) error {
	if token.IssuedAt.IsZero() {
		token.IssuedAt = r.Now()
	}
	token.IssuedAt = token.IssuedAt.UTC().Truncate(time.Millisecond)

	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM reset_tokens WHERE email = ?`, token.Email); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO reset_tokens (authenticate_id_hash, email, authenticated, expended, issued_at)
			VALUES (?, ?, ?, ?, ?)`,
			token.AuthenticateIDHash, token.Email, token.Authenticated, token.Expended, token.IssuedAt.UnixMilli())
		return wrapError(err)
	})
}

// GetResetToken retrieves a live token by the hash of its authenticate id.
func (r *Repository) GetResetToken(ctx context.Context, authenticateIDHash string) (*models.ResetToken, error) {
	var row resetTokenRow
	err := r.db.GetContext(ctx, &row,
		`SELECT * FROM reset_tokens WHERE authenticate_id_hash = ? AND issued_at > ?`,
		authenticateIDHash, r.resetCutoff())
	if err != nil {
		return nil, wrapError(err)
	}
	return row.toModel(), nil
}

// UpdateResetToken persists the flags of a live token. Flags only move
// forward: a write that would clear a flag or change nothing returns
// ErrConflict, so two concurrent transitions cannot both succeed.
func (r *Repository) UpdateResetToken(ctx context.Context, token *models.ResetToken) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE reset_tokens SET authenticated = ?, expended = ?
		WHERE authenticate_id_hash = ? AND issued_at > ?
			AND authenticated <= ? AND expended <= ?
			AND (authenticated < ? OR expended < ?)`,
		token.Authenticated, token.Expended,
		token.AuthenticateIDHash, r.resetCutoff(),
		token.Authenticated, token.Expended,
		token.Authenticated, token.Expended)
	if err != nil {
		return err
	}
	if err := requireRow(result); err == nil {
		return nil
	}

	if _, err := r.GetResetToken(ctx, token.AuthenticateIDHash); err != nil {
		return err
	}
	return ErrConflict
}

// RedeemResetToken expends an authenticated token and stores the new
// password of user in one transaction. A token that is already expended,
// or was never authenticated, yields ErrConflict and leaves the user
// untouched; a missing or expired token yields ErrNotFound.
func (r *Repository) RedeemResetToken(ctx context.Context, authenticateIDHash string, user *models.User) error {
	err := r.inTx(ctx, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE reset_tokens SET expended = 1
			WHERE authenticate_id_hash = ? AND issued_at > ? AND authenticated = 1 AND expended = 0`,
			authenticateIDHash, r.resetCutoff())
		if err != nil {
			return err
		}
		if err := requireRow(result); err != nil {
			return err
		}

		result, err = tx.ExecContext(ctx,
			`UPDATE users SET pass_salt = ?, pass_hash = ? WHERE id = ?`,
			user.PassSalt, user.PassHash, user.ID)
		if err != nil {
			return wrapError(err)
		}
		return requireRow(result)
	})
	if err == nil || !errors.Is(err, ErrNotFound) {
		return err
	}

	// Tell a spent token apart from a missing one
	token, getErr := r.GetResetToken(ctx, authenticateIDHash)
	if getErr != nil {
		return getErr
	}
	if token.Expended || !token.Authenticated {
		return ErrConflict
	}
	return err
}

// DeleteResetToken deletes a token by the hash of its authenticate id.
func (r *Repository) DeleteResetToken(ctx context.Context, authenticateIDHash string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM reset_tokens WHERE authenticate_id_hash = ?`, authenticateIDHash)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// DeleteExpiredResetTokens removes every token past its TTL, whatever its flags.
func (r *Repository) DeleteExpiredResetTokens(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM reset_tokens WHERE issued_at <= ?`, r.resetCutoff())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
