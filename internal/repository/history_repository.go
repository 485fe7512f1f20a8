package repository

import (
	"context"
	"database/sql"

	"github.com/clinovia/hospital-api/internal/model"
	"github.com/clinovia/hospital-api/internal/utils"
)

// historyCheckDepth is how many recent hashes a new password is compared
// against; historyKeepDepth is how many rows are retained per user.  Keep
// must be >= check or pruning would eat entries still being consulted.
const (
	historyCheckDepth = 3
	historyKeepDepth  = 10
)

// HistoryRepo maintains the append-only log of previous password hashes
// used to block password reuse.
type HistoryRepo struct{ DB *sql.DB }

func NewHistoryRepo(db *sql.DB) *HistoryRepo { return &HistoryRepo{DB: db} }

// CheckHistory reports whether the candidate password is allowed: false if
// it matches any of the user's most recent hashes, true otherwise
// (including when history is empty).
func (r *HistoryRepo) CheckHistory(ctx context.Context, userID uint64, plain string) (bool, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT password_hash FROM password_history WHERE user_id=? ORDER BY id DESC LIMIT ?",
		userID, historyCheckDepth)
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var entry model.PasswordHistory
		if err := rows.Scan(&entry.PasswordHash); err != nil {
			return false, err
		}
		if utils.VerifyPassword(entry.PasswordHash, plain) {
			return false, nil
		}
	}
	return true, rows.Err()
}

// Record appends a hash and prunes rows beyond the newest historyKeepDepth
// so the table stays bounded per user.
func (r *HistoryRepo) Record(ctx context.Context, userID uint64, hash string) error {
	if _, err := r.DB.ExecContext(ctx,
		"INSERT INTO password_history (user_id, password_hash) VALUES (?,?)",
		userID, hash); err != nil {
		return err
	}

	// Find the id of the oldest row worth keeping; anything older goes.
	var cutoff uint64
	err := r.DB.QueryRowContext(ctx,
		"SELECT id FROM password_history WHERE user_id=? ORDER BY id DESC LIMIT 1 OFFSET ?",
		userID, historyKeepDepth-1).Scan(&cutoff)
	if err == sql.ErrNoRows {
		return nil // fewer rows than the cap
	}
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx,
		"DELETE FROM password_history WHERE user_id=? AND id<?", userID, cutoff)
	return err
}
