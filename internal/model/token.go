package model

import "time"

// RefreshToken models an entry in the `refresh_tokens` table.  Each token
// belongs to a user and carries expiry and revocation metadata.  The opaque
// secret handed to the client is not stored; only its SHA-256 hash.  A token
// is usable for renewal only while RevokedAt is nil and the expiry has not
// passed.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – owner of the token.
//  TokenHash – SHA-256 hex digest of the secret.
//  ExpiresAt – expiration timestamp.
//  RevokedAt – when the token was revoked (null while active).
//  CreatedAt – timestamp of creation.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}

// PasswordResetToken models a single-use, time-boxed reset credential in
// the `password_reset_tokens` table.  Consuming one triggers a password
// update and revocation of the user's refresh tokens.
type PasswordResetToken struct {
	ID        uint64    // password_reset_tokens.id
	UserID    uint64    // password_reset_tokens.user_id
	TokenHash string    // password_reset_tokens.token_hash
	ExpiresAt time.Time // password_reset_tokens.expires_at
	Used      bool      // password_reset_tokens.used
	CreatedAt time.Time // password_reset_tokens.created_at
}

// PasswordHistory is one entry in the append-only `password_history` log.
// The newest entries are consulted to block password reuse.
type PasswordHistory struct {
	ID           uint64    // password_history.id
	UserID       uint64    // password_history.user_id
	PasswordHash string    // password_history.password_hash
	CreatedAt    time.Time // password_history.created_at
}
