// Package queue defines message payloads exchanged over the message broker.
package queue

// PasswordResetRequestedEvent is published when a user asks for a password
// reset.  A notification gateway consumes it and delivers the reset token
// to the user out of band; the API response itself never reveals whether
// the account exists.
type PasswordResetRequestedEvent struct {
	UserID      uint64 `json:"user_id"`
	TenantID    uint64 `json:"tenant_id"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	ResetToken  string `json:"reset_token"`
	ExpiresAt   string `json:"expires_at"`
	RequestedAt string `json:"requested_at"`
}

// HospitalRegisteredEvent is published when a new tenant completes
// registration, for welcome mail and provisioning hooks downstream.
type HospitalRegisteredEvent struct {
	TenantID     uint64 `json:"tenant_id"`
	Name         string `json:"name"`
	Slug         string `json:"slug"`
	AdminEmail   string `json:"admin_email"`
	RegisteredAt string `json:"registered_at"`
}
