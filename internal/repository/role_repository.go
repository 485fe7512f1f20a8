package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/clinovia/hospital-api/internal/model"
)

// RoleRepo persists roles and user-role assignments and resolves effective
// permission sets.
type RoleRepo struct{ DB *sql.DB }

func NewRoleRepo(db *sql.DB) *RoleRepo { return &RoleRepo{DB: db} }

// NewRole carries the column values for a custom role insert.  System roles
// are seeded out of band, never created through the API.
type NewRole struct {
	TenantID       uint64
	Name           string
	Slug           string
	Description    string
	Permissions    []string
	HierarchyLevel int
}

// RoleUpdate lists the optional fields a role update may change.
type RoleUpdate struct {
	Name           *string
	Description    *string
	Permissions    []string // nil = unchanged, empty slice = clear
	HierarchyLevel *int
}

const roleColumns = "id,tenant_id,name,slug,description,permissions,is_system_role,hierarchy_level,created_at,updated_at"

// Create inserts a tenant-scoped custom role and returns its ID.
func (r *RoleRepo) Create(ctx context.Context, nr NewRole) (uint64, error) {
	perms, err := json.Marshal(nr.Permissions)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO roles (tenant_id,name,slug,description,permissions,is_system_role,hierarchy_level) VALUES (?,?,?,?,?,0,?)",
		nr.TenantID, nr.Name, nr.Slug, nr.Description, perms, nr.HierarchyLevel)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return 0, ErrSlugExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByID fetches a role by id.
func (r *RoleRepo) GetByID(ctx context.Context, id uint64) (model.Role, error) {
	return scanRole(r.DB.QueryRowContext(ctx,
		"SELECT "+roleColumns+" FROM roles WHERE id=? LIMIT 1", id))
}

// GetBySlug resolves a slug against the tenant's custom roles and the shared
// system roles (tenant_id IS NULL).  Tenant roles shadow system roles of the
// same slug.
func (r *RoleRepo) GetBySlug(ctx context.Context, slug string, tenantID uint64) (model.Role, error) {
	return scanRole(r.DB.QueryRowContext(ctx,
		"SELECT "+roleColumns+" FROM roles WHERE slug=? AND (tenant_id=? OR tenant_id IS NULL) ORDER BY tenant_id IS NULL LIMIT 1",
		slug, tenantID))
}

// ListForTenant returns the tenant's custom roles plus all system roles.
func (r *RoleRepo) ListForTenant(ctx context.Context, tenantID uint64) ([]model.Role, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+roleColumns+" FROM roles WHERE tenant_id=? OR tenant_id IS NULL ORDER BY hierarchy_level DESC, slug",
		tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []model.Role
	for rows.Next() {
		role, err := scanRoleRows(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// Update writes only the provided fields.  System roles are rejected.
func (r *RoleRepo) Update(ctx context.Context, id uint64, upd RoleUpdate) error {
	role, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if role.IsSystemRole {
		return ErrSystemRole
	}
	var (
		set  []string
		args []interface{}
	)
	if upd.Name != nil {
		set, args = append(set, "name=?"), append(args, *upd.Name)
	}
	if upd.Description != nil {
		set, args = append(set, "description=?"), append(args, *upd.Description)
	}
	if upd.Permissions != nil {
		perms, err := json.Marshal(upd.Permissions)
		if err != nil {
			return err
		}
		set, args = append(set, "permissions=?"), append(args, perms)
	}
	if upd.HierarchyLevel != nil {
		set, args = append(set, "hierarchy_level=?"), append(args, *upd.HierarchyLevel)
	}
	if len(set) == 0 {
		return nil
	}
	args = append(args, id)
	_, err = r.DB.ExecContext(ctx,
		"UPDATE roles SET "+strings.Join(set, ", ")+" WHERE id=?", args...)
	return err
}

// Delete removes a custom role.  System roles and roles with assignments
// are rejected, the latter regardless of caller permissions.
func (r *RoleRepo) Delete(ctx context.Context, id uint64) error {
	role, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if role.IsSystemRole {
		return ErrSystemRole
	}
	var n int
	if err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM user_roles WHERE role_id=?", id).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return ErrRoleInUse
	}
	_, err = r.DB.ExecContext(ctx, "DELETE FROM roles WHERE id=?", id)
	return err
}

// Assign links a role to a user.  The pair is unique.
func (r *RoleRepo) Assign(ctx context.Context, userID, roleID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO user_roles (user_id, role_id) VALUES (?,?)", userID, roleID)
	if err != nil && strings.Contains(strings.ToLower(err.Error()), "1062") {
		return ErrAlreadyAssigned
	}
	return err
}

// Unassign removes a user-role link.
func (r *RoleRepo) Unassign(ctx context.Context, userID, roleID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"DELETE FROM user_roles WHERE user_id=? AND role_id=?", userID, roleID)
	return err
}

// RolesForUser returns every role the user holds.
func (r *RoleRepo) RolesForUser(ctx context.Context, userID uint64) ([]model.Role, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT r."+strings.ReplaceAll(roleColumns, ",", ",r.")+
			" FROM roles r JOIN user_roles ur ON ur.role_id=r.id WHERE ur.user_id=?",
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []model.Role
	for rows.Next() {
		role, err := scanRoleRows(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// EffectivePermissions unions the permission arrays of every role the user
// holds into a deduplicated set.  A user with zero roles resolves to an
// empty set (deny by default).  Returns the flattened set plus the role
// slugs for token claims.
func (r *RoleRepo) EffectivePermissions(ctx context.Context, userID uint64) (slugs, perms []string, err error) {
	roles, err := r.RolesForUser(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	seen := make(map[string]bool)
	slugs = make([]string, 0, len(roles))
	perms = []string{}
	for _, role := range roles {
		slugs = append(slugs, role.Slug)
		for _, p := range role.Permissions {
			if !seen[p] {
				seen[p] = true
				perms = append(perms, p)
			}
		}
	}
	return slugs, perms, nil
}

// scanner abstracts *sql.Row and *sql.Rows for shared scanning.
type scanner interface{ Scan(dest ...interface{}) error }

func scanRole(s scanner) (model.Role, error) {
	return scanRoleRows(s)
}

func scanRoleRows(s scanner) (model.Role, error) {
	var (
		role     model.Role
		tenantID sql.NullInt64
		perms    []byte
	)
	err := s.Scan(&role.ID, &tenantID, &role.Name, &role.Slug, &role.Description,
		&perms, &role.IsSystemRole, &role.HierarchyLevel, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		return model.Role{}, err
	}
	if tenantID.Valid {
		id := uint64(tenantID.Int64)
		role.TenantID = &id
	}
	if len(perms) > 0 {
		if err := json.Unmarshal(perms, &role.Permissions); err != nil {
			return model.Role{}, err
		}
	}
	return role, nil
}
