package handler

import (
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinovia/hospital-api/internal/repository"
)

func newTestUserHandler(t *testing.T) (*UserHandler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewUserHandler(repository.NewUserRepo(db)), mock
}

func TestDeactivateUser(t *testing.T) {
	h, mock := newTestUserHandler(t)

	mock.ExpectQuery(selectUserByIDSQL).
		WithArgs(uint64(42)).
		WillReturnRows(activeUserRow(t, "correct-horse-battery"))
	mock.ExpectExec("UPDATE users SET is_active=? WHERE id=?").
		WithArgs(false, uint64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	c, rec := adminContext(http.MethodPut, `{"is_active":false}`)
	c.SetParamNames("id")
	c.SetParamValues("42")
	require.NoError(t, h.Update(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "user updated")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateUserInAnotherTenant(t *testing.T) {
	h, mock := newTestUserHandler(t)
	now := time.Now().UTC()

	mock.ExpectQuery(selectUserByIDSQL).
		WithArgs(uint64(99)).
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(
			99, 9, "outsider@other.example", "x", "Outsider",
			nil, nil, nil, true, true, false, now, now, now))

	c, rec := adminContext(http.MethodPut, `{"name":"Renamed"}`)
	c.SetParamNames("id")
	c.SetParamValues("99")
	require.NoError(t, h.Update(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "user not found")
	assert.NoError(t, mock.ExpectationsWereMet()) // no UPDATE issued
}

func TestDeleteOwnAccountRejected(t *testing.T) {
	h, mock := newTestUserHandler(t)

	// adminContext's identity is user 1.
	c, rec := adminContext(http.MethodDelete, "")
	c.SetParamNames("id")
	c.SetParamValues("1")
	require.NoError(t, h.Delete(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "cannot delete own account")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteUser(t *testing.T) {
	h, mock := newTestUserHandler(t)

	mock.ExpectQuery(selectUserByIDSQL).
		WithArgs(uint64(42)).
		WillReturnRows(activeUserRow(t, "correct-horse-battery"))
	mock.ExpectExec("DELETE FROM users WHERE id=?").
		WithArgs(uint64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	c, rec := adminContext(http.MethodDelete, "")
	c.SetParamNames("id")
	c.SetParamValues("42")
	require.NoError(t, h.Delete(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "user deleted")
	assert.NoError(t, mock.ExpectationsWereMet())
}
