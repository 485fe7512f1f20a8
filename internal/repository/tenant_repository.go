package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/clinovia/hospital-api/internal/model"
)

// TenantRepo persists hospital organizations.
type TenantRepo struct{ DB *sql.DB }

func NewTenantRepo(db *sql.DB) *TenantRepo { return &TenantRepo{DB: db} }

// Create inserts an active tenant and returns its ID.
func (r *TenantRepo) Create(ctx context.Context, name, slug string) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO tenants (name, slug, status, settings) VALUES (?,?,?,?)",
		name, slug, model.TenantActive, "{}")
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

// GetByID fetches a tenant by id.
func (r *TenantRepo) GetByID(ctx context.Context, id uint64) (model.Tenant, error) {
	var (
		t        model.Tenant
		settings []byte
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,name,slug,status,settings,created_at,updated_at FROM tenants WHERE id=? LIMIT 1",
		id).Scan(&t.ID, &t.Name, &t.Slug, &t.Status, &settings, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return model.Tenant{}, err
	}
	t.Settings = json.RawMessage(settings)
	return t, nil
}

// SetStatus transitions a tenant between active/inactive/suspended.
// Tenants are never hard-deleted.
func (r *TenantRepo) SetStatus(ctx context.Context, id uint64, status string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE tenants SET status=? WHERE id=?", status, id)
	return err
}
