package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinovia/hospital-api/internal/middleware"
	"github.com/clinovia/hospital-api/internal/repository"
)

const selectRoleByIDSQL = "SELECT id,tenant_id,name,slug,description,permissions,is_system_role,hierarchy_level,created_at,updated_at FROM roles WHERE id=? LIMIT 1"

func newTestRoleHandler(t *testing.T) (*RoleHandler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewRoleHandler(repository.NewRoleRepo(db), repository.NewUserRepo(db)), mock
}

// adminContext builds a request context carrying a tenant-7 admin identity,
// the state RequirePermission guards leave behind.
func adminContext(method, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	middleware.SetIdentity(c, middleware.Identity{
		UserID: 1, TenantID: 7,
		Roles:       []string{"HOSPITAL_ADMIN"},
		Permissions: []string{"*:*"},
	})
	return c, rec
}

func storedRoleRow(id uint64, tenantID interface{}, slug string, system bool) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{"id", "tenant_id", "name", "slug", "description",
		"permissions", "is_system_role", "hierarchy_level", "created_at", "updated_at"}).
		AddRow(id, tenantID, slug, slug, "", []byte(`["PATIENT:READ"]`), system, 40, now, now)
}

func TestCreateRoleHierarchyCap(t *testing.T) {
	h, mock := newTestRoleHandler(t)

	for _, level := range []string{"80", "95"} {
		c, rec := adminContext(http.MethodPost,
			`{"name":"Super Role","permissions":["PATIENT:READ"],"hierarchy_level":`+level+`}`)
		require.NoError(t, h.Create(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "hierarchy level must be below 80")
	}
	assert.NoError(t, mock.ExpectationsWereMet()) // rejected before any insert
}

func TestCreateRoleAtTopOfCustomBand(t *testing.T) {
	h, mock := newTestRoleHandler(t)

	mock.ExpectExec("INSERT INTO roles (tenant_id,name,slug,description,permissions,is_system_role,hierarchy_level) VALUES (?,?,?,?,?,0,?)").
		WithArgs(uint64(7), "Ward Lead", "ward-lead", "", []byte(`["WARD:*"]`), 79).
		WillReturnResult(sqlmock.NewResult(11, 1))

	// Level 79 is the highest a tenant can grant; no slug given, so it is
	// derived from the name.
	c, rec := adminContext(http.MethodPost,
		`{"name":"Ward Lead","permissions":["WARD:*"],"hierarchy_level":79}`)
	require.NoError(t, h.Create(c))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"slug":"ward-lead"`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRoleRejectsMalformedPermission(t *testing.T) {
	h, mock := newTestRoleHandler(t)

	c, rec := adminContext(http.MethodPost,
		`{"name":"Broken","permissions":["WARDREAD"],"hierarchy_level":10}`)
	require.NoError(t, h.Create(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid permission: WARDREAD")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteRoleWithAssignedUsers(t *testing.T) {
	h, mock := newTestRoleHandler(t)

	// Tenant ownership check, then the repo's own lookup before the guard.
	mock.ExpectQuery(selectRoleByIDSQL).WithArgs(uint64(5)).
		WillReturnRows(storedRoleRow(5, uint64(7), "nurse", false))
	mock.ExpectQuery(selectRoleByIDSQL).WithArgs(uint64(5)).
		WillReturnRows(storedRoleRow(5, uint64(7), "nurse", false))
	mock.ExpectQuery("SELECT COUNT(*) FROM user_roles WHERE role_id=?").
		WithArgs(uint64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	c, rec := adminContext(http.MethodDelete, "")
	c.SetParamNames("id")
	c.SetParamValues("5")
	require.NoError(t, h.Delete(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "role has assigned users")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteSystemRole(t *testing.T) {
	h, mock := newTestRoleHandler(t)

	mock.ExpectQuery(selectRoleByIDSQL).WithArgs(uint64(3)).
		WillReturnRows(storedRoleRow(3, nil, "HOSPITAL_ADMIN", true))
	mock.ExpectQuery(selectRoleByIDSQL).WithArgs(uint64(3)).
		WillReturnRows(storedRoleRow(3, nil, "HOSPITAL_ADMIN", true))

	c, rec := adminContext(http.MethodDelete, "")
	c.SetParamNames("id")
	c.SetParamValues("3")
	require.NoError(t, h.Delete(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "system roles cannot be deleted")
}

func TestDeleteRoleFromAnotherTenant(t *testing.T) {
	h, mock := newTestRoleHandler(t)

	// The role exists but belongs to tenant 9; the caller sees a 404, not a
	// hint that the id is live elsewhere.
	mock.ExpectQuery(selectRoleByIDSQL).WithArgs(uint64(5)).
		WillReturnRows(storedRoleRow(5, uint64(9), "nurse", false))

	c, rec := adminContext(http.MethodDelete, "")
	c.SetParamNames("id")
	c.SetParamValues("5")
	require.NoError(t, h.Delete(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "role not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUnassignRole(t *testing.T) {
	h, mock := newTestRoleHandler(t)
	now := time.Now().UTC()

	mock.ExpectQuery(selectRoleByIDSQL).WithArgs(uint64(5)).
		WillReturnRows(storedRoleRow(5, uint64(7), "nurse", false))
	mock.ExpectQuery(selectUserByIDSQL).WithArgs(uint64(42)).
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(
			42, 7, "dr.chen@stmary.example", "x", "Dr. Chen",
			nil, nil, nil, true, true, false, now, now, now))
	// Zero rows removed: unassigning a role the user never held is a no-op.
	mock.ExpectExec("DELETE FROM user_roles WHERE user_id=? AND role_id=?").
		WithArgs(uint64(42), uint64(5)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	c, rec := adminContext(http.MethodDelete, `{"user_id":42}`)
	c.SetParamNames("id")
	c.SetParamValues("5")
	require.NoError(t, h.Unassign(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "role unassigned")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUnassignRoleFromAnotherTenant(t *testing.T) {
	h, mock := newTestRoleHandler(t)

	mock.ExpectQuery(selectRoleByIDSQL).WithArgs(uint64(5)).
		WillReturnRows(storedRoleRow(5, uint64(9), "nurse", false))

	c, rec := adminContext(http.MethodDelete, `{"user_id":42}`)
	c.SetParamNames("id")
	c.SetParamValues("5")
	require.NoError(t, h.Unassign(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "role not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignRoleToUserInAnotherTenant(t *testing.T) {
	h, mock := newTestRoleHandler(t)
	now := time.Now().UTC()

	mock.ExpectQuery(selectRoleByIDSQL).WithArgs(uint64(5)).
		WillReturnRows(storedRoleRow(5, uint64(7), "nurse", false))
	mock.ExpectQuery(selectUserByIDSQL).WithArgs(uint64(99)).
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(
			99, 9, "outsider@other.example", "x", "Outsider",
			nil, nil, nil, true, true, false, now, now, now))

	c, rec := adminContext(http.MethodPost, `{"user_id":99}`)
	c.SetParamNames("id")
	c.SetParamValues("5")
	require.NoError(t, h.Assign(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "user not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}
