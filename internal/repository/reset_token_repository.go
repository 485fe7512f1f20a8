package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/clinovia/hospital-api/internal/model"
)

// ResetTokenRepo persists single-use password reset tokens.  Like refresh
// tokens, only the SHA-256 hash of the credential is stored.
type ResetTokenRepo struct{ DB *sql.DB }

func NewResetTokenRepo(db *sql.DB) *ResetTokenRepo { return &ResetTokenRepo{DB: db} }

// Store inserts a reset token hash row.
func (r *ResetTokenRepo) Store(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO password_reset_tokens (user_id, token_hash, expires_at) VALUES (?,?,?)",
		userID, tokenHash, exp)
	return err
}

// Validate returns the owning user and row id for a live token.  Used and
// expired tokens are rejected with sql.ErrNoRows, indistinguishable from a
// token that never existed.
func (r *ResetTokenRepo) Validate(ctx context.Context, tokenHash string) (id, userID uint64, err error) {
	var row model.PasswordResetToken
	err = r.DB.QueryRowContext(ctx,
		"SELECT id, user_id, expires_at, used FROM password_reset_tokens WHERE token_hash=? LIMIT 1",
		tokenHash).Scan(&row.ID, &row.UserID, &row.ExpiresAt, &row.Used)
	if err != nil {
		return 0, 0, err
	}
	if row.Used || time.Now().UTC().After(row.ExpiresAt) {
		return 0, 0, sql.ErrNoRows
	}
	return row.ID, row.UserID, nil
}

// MarkUsed consumes the token so it can never be replayed.
func (r *ResetTokenRepo) MarkUsed(ctx context.Context, id uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE password_reset_tokens SET used=1 WHERE id=?", id)
	return err
}
