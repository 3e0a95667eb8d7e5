package api

import (
	"errors"
	"net/http"

	"spendsmart/service"

	"github.com/gin-gonic/gin"
)

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// PageResponse 分页响应结构
type PageResponse struct {
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
	List     interface{} `json:"list"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    200,
		Message: "success",
		Data:    data,
	})
}

// SuccessWithMessage 带消息的成功响应
func SuccessWithMessage(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    200,
		Message: message,
		Data:    data,
	})
}

// Error 错误响应
func Error(c *gin.Context, code int, message string) {
	c.JSON(code, Response{
		Code:    code,
		Message: message,
	})
}

// BadRequest 400 错误响应
func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

// Unauthorized 401 错误响应
func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, message)
}

// NotFound 404 错误响应
func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, message)
}

// Conflict 409 错误响应
func Conflict(c *gin.Context, message string) {
	Error(c, http.StatusConflict, message)
}

// InternalError 500 错误响应
func InternalError(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, message)
}

// LedgerError 按账本错误分类返回响应
// 超出预算时在 data 中附带剩余额度和当前支出总额，供客户端提示
func LedgerError(c *gin.Context, err error, fallback string) {
	var budgetErr *service.BudgetError
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		BadRequest(c, err.Error())
	case errors.As(err, &budgetErr):
		c.JSON(http.StatusBadRequest, Response{
			Code:    http.StatusBadRequest,
			Message: budgetErr.Error(),
			Data: gin.H{
				"remaining":      budgetErr.Remaining,
				"total_expenses": budgetErr.TotalExpenses,
			},
		})
	case errors.Is(err, service.ErrAccountNotFound):
		NotFound(c, "账户不存在")
	case errors.Is(err, service.ErrEntryNotFound):
		NotFound(c, "记录不存在")
	case errors.Is(err, service.ErrConflict):
		Conflict(c, "操作冲突，请稍后重试")
	default:
		InternalError(c, SafeErrorMessage(err, fallback))
	}
}
