package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/clinovia/hospital-api/internal/config"
	"github.com/clinovia/hospital-api/internal/middleware"
	"github.com/clinovia/hospital-api/internal/repository"
	"github.com/clinovia/hospital-api/internal/utils"
)

const (
	testSecret = "handler-test-secret"

	selectUserByEmailSQL = "SELECT id,tenant_id,email,password_hash,name,department,specialization,shift,is_active,email_verified,force_password_change,password_changed_at,created_at,updated_at FROM users WHERE email=? LIMIT 1"
	selectUserByIDSQL    = "SELECT id,tenant_id,email,password_hash,name,department,specialization,shift,is_active,email_verified,force_password_change,password_changed_at,created_at,updated_at FROM users WHERE id=? LIMIT 1"
	selectTenantSQL      = "SELECT id,name,slug,status,settings,created_at,updated_at FROM tenants WHERE id=? LIMIT 1"
	rolesForUserSQL      = "SELECT r.id,r.tenant_id,r.name,r.slug,r.description,r.permissions,r.is_system_role,r.hierarchy_level,r.created_at,r.updated_at FROM roles r JOIN user_roles ur ON ur.role_id=r.id WHERE ur.user_id=?"
	validateRefreshSQL   = "SELECT user_id, expires_at, revoked_at FROM refresh_tokens WHERE token_hash=? LIMIT 1"
	insertRefreshSQL     = "INSERT INTO refresh_tokens (user_id, token_hash, expires_at) VALUES (?,?,?)"
)

var userCols = []string{"id", "tenant_id", "email", "password_hash", "name",
	"department", "specialization", "shift", "is_active", "email_verified",
	"force_password_change", "password_changed_at", "created_at", "updated_at"}

func newTestAuthHandler(t *testing.T) (*AuthHandler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := config.Config{
		JWTSecret:      testSecret,
		AccessTTLMin:   15,
		RefreshTTLDays: 7,
		BcryptCost:     bcrypt.MinCost,
	}
	h := NewAuthHandler(cfg,
		repository.NewTenantRepo(db),
		repository.NewUserRepo(db),
		repository.NewRoleRepo(db),
		repository.NewTokenRepo(db),
		repository.NewHistoryRepo(db),
		repository.NewResetTokenRepo(db))
	return h, mock
}

func postJSON(body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func activeUserRow(t *testing.T, password string) *sqlmock.Rows {
	t.Helper()
	hash, err := utils.HashPassword(password, bcrypt.MinCost)
	require.NoError(t, err)
	now := time.Now().UTC()
	return sqlmock.NewRows(userCols).AddRow(
		42, 7, "dr.chen@stmary.example", hash, "Dr. Chen",
		nil, nil, nil, true, true, false, now, now, now)
}

func doctorRoleRows() *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{"id", "tenant_id", "name", "slug", "description",
		"permissions", "is_system_role", "hierarchy_level", "created_at", "updated_at"}).
		AddRow(1, 7, "Doctor", "doctor", "", []byte(`["PATIENT:READ","PATIENT:UPDATE"]`), false, 60, now, now)
}

func TestLoginSuccess(t *testing.T) {
	h, mock := newTestAuthHandler(t)
	now := time.Now().UTC()

	mock.ExpectQuery(selectUserByEmailSQL).
		WithArgs("dr.chen@stmary.example").
		WillReturnRows(activeUserRow(t, "correct-horse-battery"))
	mock.ExpectQuery(selectTenantSQL).
		WithArgs(uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "slug", "status", "settings", "created_at", "updated_at"}).
			AddRow(7, "St. Mary", "st-mary", "active", []byte("{}"), now, now))
	mock.ExpectQuery(rolesForUserSQL).
		WithArgs(uint64(42)).
		WillReturnRows(doctorRoleRows())
	mock.ExpectExec(insertRefreshSQL).
		WithArgs(uint64(42), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	c, rec := postJSON(`{"email":"Dr.Chen@stmary.example","password":"correct-horse-battery"}`)
	require.NoError(t, h.Login(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Tenant struct {
			Slug   string `json:"slug"`
			Status string `json:"status"`
		} `json:"tenant"`
		User struct {
			ID                  uint64   `json:"id"`
			Roles               []string `json:"roles"`
			ForcePasswordChange bool     `json:"force_password_change"`
		} `json:"user"`
		Access  struct{ Token string } `json:"access"`
		Refresh struct{ Token string } `json:"refresh"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, "st-mary", resp.Tenant.Slug)
	assert.Equal(t, uint64(42), resp.User.ID)
	assert.Equal(t, []string{"doctor"}, resp.User.Roles)
	assert.False(t, resp.User.ForcePasswordChange)

	// The access token must carry the resolved roles and permission union.
	claims := utils.VerifyAccessToken(testSecret, resp.Access.Token)
	require.NotNil(t, claims)
	assert.Equal(t, uint64(42), claims.UserID)
	assert.Equal(t, uint64(7), claims.TenantID)
	assert.Equal(t, []string{"doctor"}, claims.Roles)
	assert.ElementsMatch(t, []string{"PATIENT:READ", "PATIENT:UPDATE"}, claims.Permissions)

	// The refresh envelope is signed with the same secret and carries typ=refresh.
	assert.NotNil(t, utils.VerifyRefreshToken(testSecret, resp.Refresh.Token))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoginUnknownEmail(t *testing.T) {
	h, mock := newTestAuthHandler(t)

	mock.ExpectQuery(selectUserByEmailSQL).
		WithArgs("ghost@stmary.example").
		WillReturnRows(sqlmock.NewRows(userCols))

	c, rec := postJSON(`{"email":"ghost@stmary.example","password":"whatever-pass"}`)
	require.NoError(t, h.Login(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid credentials")
}

func TestLoginWrongPassword(t *testing.T) {
	h, mock := newTestAuthHandler(t)

	mock.ExpectQuery(selectUserByEmailSQL).
		WithArgs("dr.chen@stmary.example").
		WillReturnRows(activeUserRow(t, "correct-horse-battery"))

	c, rec := postJSON(`{"email":"dr.chen@stmary.example","password":"wrong-password"}`)
	require.NoError(t, h.Login(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid credentials")
	// No tenant lookup, no role resolution, no refresh insert.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoginInactiveAccount(t *testing.T) {
	h, mock := newTestAuthHandler(t)

	hash, err := utils.HashPassword("correct-horse-battery", bcrypt.MinCost)
	require.NoError(t, err)
	now := time.Now().UTC()
	mock.ExpectQuery(selectUserByEmailSQL).
		WithArgs("dr.chen@stmary.example").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(
			42, 7, "dr.chen@stmary.example", hash, "Dr. Chen",
			nil, nil, nil, false, true, false, now, now, now))

	c, rec := postJSON(`{"email":"dr.chen@stmary.example","password":"correct-horse-battery"}`)
	require.NoError(t, h.Login(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "account is inactive")
	// The flow stops before token issuance: nothing was persisted.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoginSuspendedTenant(t *testing.T) {
	h, mock := newTestAuthHandler(t)
	now := time.Now().UTC()

	mock.ExpectQuery(selectUserByEmailSQL).
		WithArgs("dr.chen@stmary.example").
		WillReturnRows(activeUserRow(t, "correct-horse-battery"))
	mock.ExpectQuery(selectTenantSQL).
		WithArgs(uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "slug", "status", "settings", "created_at", "updated_at"}).
			AddRow(7, "St. Mary", "st-mary", "suspended", []byte("{}"), now, now))

	c, rec := postJSON(`{"email":"dr.chen@stmary.example","password":"correct-horse-battery"}`)
	require.NoError(t, h.Login(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "hospital is not active")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshReissuesAccessWithoutRotation(t *testing.T) {
	h, mock := newTestAuthHandler(t)

	secret, err := utils.NewRefreshSecret()
	require.NoError(t, err)
	refresh, err := utils.NewRefreshToken(testSecret, 42, 7, secret, 7)
	require.NoError(t, err)

	mock.ExpectQuery(validateRefreshSQL).
		WithArgs(utils.HashRefreshSecret(secret)).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "expires_at", "revoked_at"}).
			AddRow(42, time.Now().UTC().Add(time.Hour), nil))
	mock.ExpectQuery(selectUserByIDSQL).
		WithArgs(uint64(42)).
		WillReturnRows(activeUserRow(t, "correct-horse-battery"))
	mock.ExpectQuery(rolesForUserSQL).
		WithArgs(uint64(42)).
		WillReturnRows(doctorRoleRows())

	c, rec := postJSON(`{"refresh_token":"` + refresh.Token + `"}`)
	require.NoError(t, h.Refresh(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Access struct{ Token string } `json:"access"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	claims := utils.VerifyAccessToken(testSecret, resp.Access.Token)
	require.NotNil(t, claims)
	assert.Equal(t, []string{"doctor"}, claims.Roles)

	// No refresh_tokens insert expected: the envelope is reused until expiry.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshRejectsGarbageToken(t *testing.T) {
	h, _ := newTestAuthHandler(t)

	c, rec := postJSON(`{"refresh_token":"not-a-jwt"}`)
	require.NoError(t, h.Refresh(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid or expired token")
}

func TestRefreshRejectsRevokedToken(t *testing.T) {
	h, mock := newTestAuthHandler(t)

	secret, err := utils.NewRefreshSecret()
	require.NoError(t, err)
	refresh, err := utils.NewRefreshToken(testSecret, 42, 7, secret, 7)
	require.NoError(t, err)

	// Signature verifies but the stored row was revoked at logout.
	mock.ExpectQuery(validateRefreshSQL).
		WithArgs(utils.HashRefreshSecret(secret)).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "expires_at", "revoked_at"}).
			AddRow(42, time.Now().UTC().Add(time.Hour), time.Now().UTC()))

	c, rec := postJSON(`{"refresh_token":"` + refresh.Token + `"}`)
	require.NoError(t, h.Refresh(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutIsIdempotent(t *testing.T) {
	h, _ := newTestAuthHandler(t)

	// No token at all.
	c, rec := postJSON(`{}`)
	require.NoError(t, h.Logout(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "logged out")

	// Garbage token: same outcome.
	c, rec = postJSON(`{"refresh_token":"garbage"}`)
	require.NoError(t, h.Logout(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLogoutRevokesStoredToken(t *testing.T) {
	h, mock := newTestAuthHandler(t)

	secret, err := utils.NewRefreshSecret()
	require.NoError(t, err)
	refresh, err := utils.NewRefreshToken(testSecret, 42, 7, secret, 7)
	require.NoError(t, err)

	mock.ExpectExec("UPDATE refresh_tokens SET revoked_at=NOW() WHERE token_hash=? AND revoked_at IS NULL").
		WithArgs(utils.HashRefreshSecret(secret)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	c, rec := postJSON(`{"refresh_token":"` + refresh.Token + `"}`)
	require.NoError(t, h.Logout(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMe(t *testing.T) {
	h, _ := newTestAuthHandler(t)

	c, rec := postJSON(`{}`)
	middleware.SetIdentity(c, middleware.Identity{
		UserID: 42, TenantID: 7,
		Roles:       []string{"doctor"},
		Permissions: []string{"PATIENT:READ"},
	})
	require.NoError(t, h.Me(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var ident middleware.Identity
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ident))
	assert.Equal(t, uint64(42), ident.UserID)
	assert.Equal(t, []string{"doctor"}, ident.Roles)
}

func TestMeWithoutIdentity(t *testing.T) {
	h, _ := newTestAuthHandler(t)

	c, rec := postJSON(`{}`)
	require.NoError(t, h.Me(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
