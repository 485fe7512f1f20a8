package model

import "time"

// User represents a staff account as stored in the `users` table.  Each
// field corresponds to a column.  Accounts are soft-disabled by clearing
// IsActive rather than deleted; a hard delete cascades to role assignments
// and tokens at the schema level.
//
// Fields:
//  ID                  – primary key identifier of the user.
//  TenantID            – owning tenant; email is unique within a tenant.
//  Email               – login email address.
//  PasswordHash        – bcrypt hashed password.
//  Name                – display name.
//  Department          – optional department (nullable).
//  Specialization      – optional medical specialization (nullable).
//  Shift               – optional shift label (nullable).
//  IsActive            – whether the account may log in.
//  EmailVerified       – whether the email has been confirmed.
//  ForcePasswordChange – the user must change their password at next login.
//  PasswordChangedAt   – when the password was last set.
//  CreatedAt           – timestamp of creation.
//  UpdatedAt           – timestamp of last update.
type User struct {
	ID                  uint64     // users.id
	TenantID            uint64     // users.tenant_id
	Email               string     // users.email
	PasswordHash        string     // users.password_hash
	Name                string     // users.name
	Department          *string    // users.department (nullable)
	Specialization      *string    // users.specialization (nullable)
	Shift               *string    // users.shift (nullable)
	IsActive            bool       // users.is_active
	EmailVerified       bool       // users.email_verified
	ForcePasswordChange bool       // users.force_password_change
	PasswordChangedAt   *time.Time // users.password_changed_at (nullable)
	CreatedAt           time.Time  // users.created_at
	UpdatedAt           time.Time  // users.updated_at
}
