package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"spendsmart/database"
	"spendsmart/service"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupExpenseRouter(userID uint) (*gin.Engine, *ExpenseHandler) {
	handler := NewExpenseHandler(service.NewLedger(database.DB, nil, 1))
	r := gin.New()
	auth := r.Group("", setUserIDMiddleware(userID))
	auth.POST("/expenses", handler.Create)
	auth.GET("/expenses", handler.List)
	auth.GET("/expenses/:id", handler.Get)
	auth.PUT("/expenses/:id", handler.Update)
	auth.DELETE("/expenses/:id", handler.Delete)
	return r, handler
}

func mockExpenseRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "user_id", "amount", "category", "description", "expense_time", "created_at", "updated_at", "deleted_at"}).
		AddRow(1, 1, 80.0, "餐饮", "午餐", time.Now(), time.Now(), time.Now(), nil)
}

func TestExpenseHandler_Create(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()
	r, _ := setupExpenseRouter(1)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .* FROM `users` .*FOR UPDATE").
		WillReturnRows(mockUserRows("hash", 100, 0))
	mock.ExpectExec("INSERT INTO `expenses`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE `users` SET `total_expenses`=total_expenses \\+").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	w := performJSON(r, "POST", "/expenses", gin.H{
		"amount":       80,
		"category":     "餐饮",
		"description":  "午餐",
		"expense_time": "2024-01-15 12:30:00",
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "创建成功")

	var resp struct {
		Data struct {
			Remaining float64 `json:"remaining"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 20.0, resp.Data.Remaining)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExpenseHandler_Create_BudgetExceeded(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()
	r, _ := setupExpenseRouter(1)

	// 剩余 20，金额 30 超出，返回 400 且附带剩余额度
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .* FROM `users` .*FOR UPDATE").
		WillReturnRows(mockUserRows("hash", 100, 80))
	mock.ExpectRollback()

	w := performJSON(r, "POST", "/expenses", gin.H{
		"amount":       30,
		"category":     "餐饮",
		"expense_time": "2024-01-15 12:30:00",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "超出剩余预算")

	var resp struct {
		Data struct {
			Remaining     float64 `json:"remaining"`
			TotalExpenses float64 `json:"total_expenses"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 20.0, resp.Data.Remaining)
	assert.Equal(t, 80.0, resp.Data.TotalExpenses)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExpenseHandler_Create_InvalidAmount(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()
	r, _ := setupExpenseRouter(1)

	// 负数金额被参数校验拒绝，不访问数据库
	w := performJSON(r, "POST", "/expenses", gin.H{
		"amount":       -5,
		"category":     "餐饮",
		"expense_time": "2024-01-15 12:30:00",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExpenseHandler_Create_BadTimeFormat(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()
	r, _ := setupExpenseRouter(1)

	w := performJSON(r, "POST", "/expenses", gin.H{
		"amount":       10,
		"category":     "餐饮",
		"expense_time": "2024/01/15",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "时间格式错误")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExpenseHandler_List(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()
	r, _ := setupExpenseRouter(1)

	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `expenses`").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT .* FROM `expenses`").
		WillReturnRows(mockExpenseRows())

	req := httptest.NewRequest("GET", "/expenses?page=1&page_size=10", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "餐饮")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExpenseHandler_Update(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()
	r, _ := setupExpenseRouter(1)

	// 80 -> 50，剩余额度回升到 50
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .* FROM `users` .*FOR UPDATE").
		WillReturnRows(mockUserRows("hash", 100, 80))
	mock.ExpectQuery("SELECT .* FROM `expenses`").
		WillReturnRows(mockExpenseRows())
	mock.ExpectExec("UPDATE `expenses`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE `users` SET `total_expenses`=total_expenses \\+").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	w := performJSON(r, "PUT", "/expenses/1", gin.H{
		"amount":       50,
		"category":     "餐饮",
		"description":  "午餐",
		"expense_time": "2024-01-15 12:30:00",
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "更新成功")

	var resp struct {
		Data struct {
			Remaining float64 `json:"remaining"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 50.0, resp.Data.Remaining)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExpenseHandler_Delete(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()
	r, _ := setupExpenseRouter(1)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .* FROM `users` .*FOR UPDATE").
		WillReturnRows(mockUserRows("hash", 100, 80))
	mock.ExpectQuery("SELECT .* FROM `expenses`").
		WillReturnRows(mockExpenseRows())
	mock.ExpectExec("UPDATE `expenses` SET `deleted_at`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE `users` SET `total_expenses`=total_expenses -").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	req := httptest.NewRequest("DELETE", "/expenses/1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "删除成功")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExpenseHandler_Delete_NotFound(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()
	r, _ := setupExpenseRouter(1)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .* FROM `users` .*FOR UPDATE").
		WillReturnRows(mockUserRows("hash", 100, 0))
	mock.ExpectQuery("SELECT .* FROM `expenses`").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	req := httptest.NewRequest("DELETE", "/expenses/12345", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "记录不存在")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExpenseHandler_Get_NotFound(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()
	r, _ := setupExpenseRouter(2)

	// 他人的记录返回与不存在相同的 404
	mock.ExpectQuery("SELECT .* FROM `expenses`").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	req := httptest.NewRequest("GET", "/expenses/1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "记录不存在")
	require.NoError(t, mock.ExpectationsWereMet())
}
