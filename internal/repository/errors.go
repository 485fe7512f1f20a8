// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios. For
// example, ErrRoleInUse indicates that a role still has assignments and
// cannot be deleted, while ErrSystemRole signals an attempt to mutate a
// role that is shared across all tenants.
package repository

import "errors"

// ErrEmailExists is returned when creating a user whose email is already
// taken within the tenant. Handlers translate this into HTTP 400.
var ErrEmailExists = errors.New("email already exists")

// ErrSlugExists is returned when a tenant or role slug collides with an
// existing row. Handlers translate this into HTTP 400.
var ErrSlugExists = errors.New("slug already exists")

// ErrSystemRole is returned when an operation attempts to mutate or delete
// a system role. System roles are immutable via the API.
var ErrSystemRole = errors.New("system role is immutable")

// ErrRoleInUse is returned when deleting a role that still has user
// assignments. Handlers translate this into HTTP 400 regardless of the
// caller's permissions.
var ErrRoleInUse = errors.New("role has assigned users")

// ErrAlreadyAssigned is returned when assigning a role the user already
// holds; the (user_id, role_id) pair is unique.
var ErrAlreadyAssigned = errors.New("role already assigned")
