package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/clinovia/hospital-api/internal/model"
)

// UserRepo persists staff accounts.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// NewUser carries the column values for an insert.  The password arrives
// already hashed so callers can record the same hash in password history.
type NewUser struct {
	TenantID       uint64
	Email          string
	PasswordHash   string
	Name           string
	Department     *string
	Specialization *string
	Shift          *string
}

// UserUpdate lists the optional fields a profile update may change.  Only
// non-nil fields are written; everything else keeps its stored value.
type UserUpdate struct {
	Name           *string
	Department     *string
	Specialization *string
	Shift          *string
	IsActive       *bool
	EmailVerified  *bool
}

const userColumns = "id,tenant_id,email,password_hash,name,department,specialization,shift," +
	"is_active,email_verified,force_password_change,password_changed_at,created_at,updated_at"

// Create inserts a user and returns its ID.
func (r *UserRepo) Create(ctx context.Context, nu NewUser) (uint64, error) {
	email := strings.ToLower(strings.TrimSpace(nu.Email))
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (tenant_id,email,password_hash,name,department,specialization,shift,password_changed_at) VALUES (?,?,?,?,?,?,?,NOW())",
		nu.TenantID, email, nu.PasswordHash, nu.Name, nu.Department, nu.Specialization, nu.Shift)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}

// UpdatePassword stores a new hash, stamps password_changed_at and clears
// the force-change flag.
func (r *UserRepo) UpdatePassword(ctx context.Context, id uint64, hash string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET password_hash=?, password_changed_at=NOW(), force_password_change=0 WHERE id=?",
		hash, id)
	return err
}

// Update writes only the fields provided in upd.  A fully-nil update is a
// no-op.
func (r *UserRepo) Update(ctx context.Context, id uint64, upd UserUpdate) error {
	var (
		set  []string
		args []interface{}
	)
	if upd.Name != nil {
		set, args = append(set, "name=?"), append(args, *upd.Name)
	}
	if upd.Department != nil {
		set, args = append(set, "department=?"), append(args, *upd.Department)
	}
	if upd.Specialization != nil {
		set, args = append(set, "specialization=?"), append(args, *upd.Specialization)
	}
	if upd.Shift != nil {
		set, args = append(set, "shift=?"), append(args, *upd.Shift)
	}
	if upd.IsActive != nil {
		set, args = append(set, "is_active=?"), append(args, *upd.IsActive)
	}
	if upd.EmailVerified != nil {
		set, args = append(set, "email_verified=?"), append(args, *upd.EmailVerified)
	}
	if len(set) == 0 {
		return nil
	}
	args = append(args, id)
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET "+strings.Join(set, ", ")+" WHERE id=?", args...)
	return err
}

// Delete hard-deletes a user.  Role assignments and tokens cascade at the
// schema level.
func (r *UserRepo) Delete(ctx context.Context, id uint64) error {
	_, err := r.DB.ExecContext(ctx, "DELETE FROM users WHERE id=?", id)
	return err
}

func (r *UserRepo) scanOne(row *sql.Row) (model.User, error) {
	var (
		u         model.User
		changedAt sql.NullTime
	)
	err := row.Scan(&u.ID, &u.TenantID, &u.Email, &u.PasswordHash, &u.Name,
		&u.Department, &u.Specialization, &u.Shift,
		&u.IsActive, &u.EmailVerified, &u.ForcePasswordChange,
		&changedAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return model.User{}, err
	}
	if changedAt.Valid {
		u.PasswordChangedAt = &changedAt.Time
	}
	return u, nil
}
