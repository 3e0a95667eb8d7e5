package service

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func expectReconcile(mock sqlmock.Sqlmock, cached, actual float64) {
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .* FROM `users` .*FOR UPDATE").
		WillReturnRows(userRows(100, cached))
	mock.ExpectQuery("SELECT COALESCE\\(SUM\\(amount\\), 0\\) FROM `expenses`").
		WillReturnRows(sqlmock.NewRows([]string{"COALESCE(SUM(amount), 0)"}).AddRow(actual))
	mock.ExpectExec("UPDATE `users`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
}

func TestReconciler_Reconcile_FixesDrift(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()
	reconciler := NewReconciler(db)

	// 缓存值漂移到 90，实际记录总和 80，覆盖修正
	expectReconcile(mock, 90, 80)

	user, err := reconciler.Reconcile(1)
	require.NoError(t, err)
	assert.Equal(t, 80.0, user.TotalExpenses)
	assert.Equal(t, 20.0, user.Remaining())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReconciler_Reconcile_Idempotent(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()
	reconciler := NewReconciler(db)

	// 期间无并发写入时连续对账两次，结果一致
	expectReconcile(mock, 80, 80)
	expectReconcile(mock, 80, 80)

	first, err := reconciler.Reconcile(1)
	require.NoError(t, err)
	second, err := reconciler.Reconcile(1)
	require.NoError(t, err)
	assert.Equal(t, first.TotalExpenses, second.TotalExpenses)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReconciler_Reconcile_EmptyLog(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()
	reconciler := NewReconciler(db)

	// 没有任何消费记录时总和按 0 计
	expectReconcile(mock, 25, 0)

	user, err := reconciler.Reconcile(1)
	require.NoError(t, err)
	assert.Equal(t, 0.0, user.TotalExpenses)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReconciler_Reconcile_AccountNotFound(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()
	reconciler := NewReconciler(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .* FROM `users` .*FOR UPDATE").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	_, err := reconciler.Reconcile(99)
	assert.ErrorIs(t, err, ErrAccountNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
