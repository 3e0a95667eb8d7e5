package api

import (
	"spendsmart/middleware"
	"spendsmart/service"

	"github.com/gin-gonic/gin"
)

// BudgetHandler 预算处理器
// 申报收入上限的读写、预算概览，以及手动触发对账的运维入口
type BudgetHandler struct {
	ledger     *service.Ledger
	reconciler *service.Reconciler
}

// NewBudgetHandler 创建预算处理器
func NewBudgetHandler(ledger *service.Ledger, reconciler *service.Reconciler) *BudgetHandler {
	return &BudgetHandler{ledger: ledger, reconciler: reconciler}
}

// SetIncomeRequest 设置申报收入请求
type SetIncomeRequest struct {
	TotalIncome *float64 `json:"total_income" binding:"required,gte=0" example:"5000.00"`
}

// GetIncome 获取申报收入
// @Summary 获取申报收入
// @Description 获取当前用户申报的收入上限
// @Tags 预算
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response "获取成功"
// @Failure 401 {object} Response "未授权"
// @Failure 404 {object} Response "账户不存在"
// @Router /api/v1/budget/income [get]
func (h *BudgetHandler) GetIncome(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	summary, err := h.ledger.Summary(userID)
	if err != nil {
		LedgerError(c, err, "查询失败")
		return
	}
	Success(c, gin.H{"total_income": summary.TotalIncome})
}

// SetIncome 设置申报收入
// @Summary 设置申报收入
// @Description 覆盖式设置当前用户的收入上限。允许设置到当前支出以下，已记录的消费不受影响，但新增支出会被拒绝。
// @Tags 预算
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body SetIncomeRequest true "收入信息"
// @Success 200 {object} Response "设置成功"
// @Failure 400 {object} Response "收入值无效"
// @Failure 401 {object} Response "未授权"
// @Failure 404 {object} Response "账户不存在"
// @Router /api/v1/budget/income [put]
func (h *BudgetHandler) SetIncome(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	var req SetIncomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "收入值无效")
		return
	}

	user, err := h.ledger.SetIncome(userID, *req.TotalIncome)
	if err != nil {
		LedgerError(c, err, "设置收入失败")
		return
	}

	SuccessWithMessage(c, "收入设置成功", gin.H{
		"username":     user.Username,
		"total_income": user.TotalIncome,
	})
}

// Summary 获取预算概览
// @Summary 获取预算概览
// @Description 返回申报收入、缓存的支出总额和剩余额度（基于当前账户快照，不触发对账）
// @Tags 预算
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=service.BudgetSummary} "获取成功"
// @Failure 401 {object} Response "未授权"
// @Failure 404 {object} Response "账户不存在"
// @Router /api/v1/budget/summary [get]
func (h *BudgetHandler) Summary(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	summary, err := h.ledger.Summary(userID)
	if err != nil {
		LedgerError(c, err, "查询失败")
		return
	}
	Success(c, summary)
}

// Reconcile 手动触发对账
// @Summary 手动触发对账
// @Description 按消费记录重算当前用户的支出总额并覆盖缓存值，用于怀疑缓存漂移时的修复
// @Tags 预算
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response "对账完成"
// @Failure 401 {object} Response "未授权"
// @Failure 404 {object} Response "账户不存在"
// @Router /api/v1/budget/reconcile [post]
func (h *BudgetHandler) Reconcile(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	user, err := h.reconciler.Reconcile(userID)
	if err != nil {
		LedgerError(c, err, "对账失败")
		return
	}

	SuccessWithMessage(c, "对账完成", gin.H{
		"total_income":   user.TotalIncome,
		"total_expenses": user.TotalExpenses,
		"remaining":      user.Remaining(),
	})
}
