package model

import "time"

// MaxCustomRoleHierarchy is the exclusive upper bound for tenant-scoped
// roles.  Hierarchy levels 80 and above are reserved for system roles.
const MaxCustomRoleHierarchy = 80

// Role represents a row in the `roles` table: a named bundle of permission
// strings.  System roles have a NULL tenant_id and are shared across all
// tenants; they cannot be mutated or deleted through the API.  Custom roles
// belong to one tenant and must sit strictly below the system hierarchy band.
//
// Fields:
//  ID             – primary key identifier of the role.
//  TenantID       – owning tenant, nil for system roles.
//  Name           – human-readable role name.
//  Slug           – identifier unique per (slug, tenant_id).
//  Description    – free-form description.
//  Permissions    – permission strings ("RESOURCE:ACTION", "RESOURCE:*", "*:*"),
//                   stored as a JSON array.
//  IsSystemRole   – shared, immutable role flag.
//  HierarchyLevel – 0–100; custom roles are capped below 80.
//  CreatedAt      – timestamp of creation.
//  UpdatedAt      – timestamp of last update.
type Role struct {
	ID             uint64    // roles.id
	TenantID       *uint64   // roles.tenant_id (nullable)
	Name           string    // roles.name
	Slug           string    // roles.slug
	Description    string    // roles.description
	Permissions    []string  // roles.permissions (JSON column)
	IsSystemRole   bool      // roles.is_system_role
	HierarchyLevel int       // roles.hierarchy_level
	CreatedAt      time.Time // roles.created_at
	UpdatedAt      time.Time // roles.updated_at
}

// UserRole models the many-to-many join between users and roles.  The
// (UserID, RoleID) pair is unique; effective permissions are the union
// across all of a user's assignments.
type UserRole struct {
	UserID    uint64    // user_roles.user_id
	RoleID    uint64    // user_roles.role_id
	CreatedAt time.Time // user_roles.created_at
}
