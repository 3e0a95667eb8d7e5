package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"spendsmart/database"
	"spendsmart/service"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupBudgetRouter(userID uint) *gin.Engine {
	reconciler := service.NewReconciler(database.DB)
	handler := NewBudgetHandler(service.NewLedger(database.DB, nil, 1), reconciler)
	r := gin.New()
	auth := r.Group("", setUserIDMiddleware(userID))
	auth.GET("/budget/income", handler.GetIncome)
	auth.PUT("/budget/income", handler.SetIncome)
	auth.GET("/budget/summary", handler.Summary)
	auth.POST("/budget/reconcile", handler.Reconcile)
	return r
}

func TestBudgetHandler_SetIncome(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()
	r := setupBudgetRouter(1)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .* FROM `users` .*FOR UPDATE").
		WillReturnRows(mockUserRows("hash", 100, 0))
	mock.ExpectExec("UPDATE `users`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	w := performJSON(r, "PUT", "/budget/income", gin.H{"total_income": 5000})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "收入设置成功")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBudgetHandler_SetIncome_Negative(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()
	r := setupBudgetRouter(1)

	// 负收入被参数校验拒绝，不访问数据库
	w := performJSON(r, "PUT", "/budget/income", gin.H{"total_income": -1})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBudgetHandler_Summary(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()
	r := setupBudgetRouter(1)

	mock.ExpectQuery("SELECT .* FROM `users`").
		WillReturnRows(mockUserRows("hash", 100, 80))

	req := httptest.NewRequest("GET", "/budget/summary", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data service.BudgetSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 100.0, resp.Data.TotalIncome)
	assert.Equal(t, 80.0, resp.Data.TotalExpenses)
	assert.Equal(t, 20.0, resp.Data.Remaining)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBudgetHandler_Summary_AccountNotFound(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()
	r := setupBudgetRouter(99)

	mock.ExpectQuery("SELECT .* FROM `users`").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	req := httptest.NewRequest("GET", "/budget/summary", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "账户不存在")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBudgetHandler_Reconcile(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()
	r := setupBudgetRouter(1)

	// 缓存值 90 被按消费记录总和 80 覆盖修正
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .* FROM `users` .*FOR UPDATE").
		WillReturnRows(mockUserRows("hash", 100, 90))
	mock.ExpectQuery("SELECT COALESCE\\(SUM\\(amount\\), 0\\) FROM `expenses`").
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(80.0))
	mock.ExpectExec("UPDATE `users`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	w := performJSON(r, "POST", "/budget/reconcile", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "对账完成")

	var resp struct {
		Data struct {
			TotalExpenses float64 `json:"total_expenses"`
			Remaining     float64 `json:"remaining"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 80.0, resp.Data.TotalExpenses)
	assert.Equal(t, 20.0, resp.Data.Remaining)
	require.NoError(t, mock.ExpectationsWereMet())
}
