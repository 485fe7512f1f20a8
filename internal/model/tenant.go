package model

import (
	"encoding/json"
	"time"
)

// Tenant statuses.  A tenant is never hard-deleted in normal operation;
// its status moves between these values instead.
const (
	TenantActive    = "active"
	TenantInactive  = "inactive"
	TenantSuspended = "suspended"
)

// Tenant represents a row in the `tenants` table.  Every user, role
// instance and downstream resource belongs to exactly one tenant; the
// tenant ID partitions all data in the system.
//
// Fields:
//  ID        – primary key identifier of the tenant.
//  Name      – display name of the hospital.
//  Slug      – unique URL-safe identifier.
//  Status    – active, inactive or suspended.
//  Settings  – free-form JSON settings blob.
//  CreatedAt – timestamp of creation.
//  UpdatedAt – timestamp of last update.
type Tenant struct {
	ID        uint64          // tenants.id
	Name      string          // tenants.name
	Slug      string          // tenants.slug
	Status    string          // tenants.status
	Settings  json.RawMessage // tenants.settings (JSON column)
	CreatedAt time.Time       // tenants.created_at
	UpdatedAt time.Time       // tenants.updated_at
}
