package api

import (
	"strconv"
	"time"

	"spendsmart/database"
	"spendsmart/middleware"
	"spendsmart/models"
	"spendsmart/service"

	"github.com/gin-gonic/gin"
)

// ExpenseHandler 消费记录处理器
// 所有写操作都经过账本协调器，保证预算校验与缓存支出总额的一致性
type ExpenseHandler struct {
	ledger *service.Ledger
}

// NewExpenseHandler 创建消费记录处理器
func NewExpenseHandler(ledger *service.Ledger) *ExpenseHandler {
	return &ExpenseHandler{ledger: ledger}
}

// ExpenseRequest 创建/更新消费记录请求
type ExpenseRequest struct {
	Amount      float64 `json:"amount" binding:"required,gt=0" example:"99.99"`
	Category    string  `json:"category" binding:"required" example:"餐饮"`
	Description string  `json:"description" example:"午餐"`
	ExpenseTime string  `json:"expense_time" binding:"required" example:"2024-01-15 12:30:00"`
}

// ExpenseListRequest 消费记录列表请求
type ExpenseListRequest struct {
	Page      int    `form:"page" example:"1"`
	PageSize  int    `form:"page_size" example:"10"`
	Category  string `form:"category" example:"餐饮"`
	StartTime string `form:"start_time" example:"2024-01-01"`
	EndTime   string `form:"end_time" example:"2024-12-31"`
	Order     string `form:"order" example:"desc"`
}

// ExpenseResponse 消费记录写操作响应
type ExpenseResponse struct {
	Expense   *models.Expense `json:"expense"`
	Remaining float64         `json:"remaining" example:"20.00"` // 操作后的剩余额度
}

// toInput 把请求转换为服务层参数
func (req *ExpenseRequest) toInput() (service.ExpenseInput, error) {
	expenseTime, err := time.ParseInLocation("2006-01-02 15:04:05", req.ExpenseTime, time.Local)
	if err != nil {
		return service.ExpenseInput{}, err
	}
	return service.ExpenseInput{
		Amount:      req.Amount,
		Category:    req.Category,
		Description: req.Description,
		ExpenseTime: expenseTime,
	}, nil
}

// Create 创建消费记录
// @Summary 创建消费记录
// @Description 创建一条新的消费记录。金额超过剩余额度（申报收入 - 支出总额）时拒绝，返回 400 并附带剩余额度。
// @Tags 消费记录
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ExpenseRequest true "消费记录信息"
// @Success 200 {object} Response{data=ExpenseResponse} "创建成功"
// @Failure 400 {object} Response "参数错误或超出预算"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/expenses [post]
func (h *ExpenseHandler) Create(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	var req ExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "参数错误"))
		return
	}
	input, err := req.toInput()
	if err != nil {
		BadRequest(c, "时间格式错误，应为: 2006-01-02 15:04:05")
		return
	}

	expense, remaining, err := h.ledger.CreateExpense(userID, input)
	if err != nil {
		LedgerError(c, err, "创建消费记录失败")
		return
	}

	SuccessWithMessage(c, "创建成功", ExpenseResponse{Expense: expense, Remaining: remaining})
}

// List 获取消费记录列表
// @Summary 获取消费记录列表
// @Description 获取当前用户的消费记录列表，支持分页和筛选，默认按消费时间降序
// @Tags 消费记录
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(10)
// @Param category query string false "类别筛选"
// @Param start_time query string false "开始时间 (2024-01-01)"
// @Param end_time query string false "结束时间 (2024-12-31)"
// @Param order query string false "排序方向 asc/desc" default(desc)
// @Success 200 {object} Response{data=PageResponse{list=[]models.Expense}} "获取成功"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/expenses [get]
func (h *ExpenseHandler) List(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	var req ExpenseListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "参数错误"))
		return
	}

	filter := service.ExpenseFilter{
		Category: req.Category,
		Order:    req.Order,
		Page:     req.Page,
		PageSize: req.PageSize,
	}
	if req.StartTime != "" {
		if t, err := time.ParseInLocation("2006-01-02", req.StartTime, time.Local); err == nil {
			filter.StartTime = t
		}
	}
	if req.EndTime != "" {
		if t, err := time.ParseInLocation("2006-01-02", req.EndTime, time.Local); err == nil {
			// 包含结束日期当天
			filter.EndTime = t.Add(24*time.Hour - time.Second)
		}
	}

	expenses, total, err := h.ledger.ListExpenses(userID, filter)
	if err != nil {
		LedgerError(c, err, "查询失败")
		return
	}

	Success(c, PageResponse{
		Total:    total,
		Page:     filter.Page,
		PageSize: filter.PageSize,
		List:     expenses,
	})
}

// Get 获取单条消费记录
// @Summary 获取单条消费记录
// @Description 根据ID获取消费记录详情，他人的记录与不存在的记录均返回 404
// @Tags 消费记录
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "消费记录ID"
// @Success 200 {object} Response{data=models.Expense} "获取成功"
// @Failure 401 {object} Response "未授权"
// @Failure 404 {object} Response "记录不存在"
// @Router /api/v1/expenses/{id} [get]
func (h *ExpenseHandler) Get(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		BadRequest(c, "无效的ID")
		return
	}

	expense, err := h.ledger.GetExpense(userID, uint(id))
	if err != nil {
		LedgerError(c, err, "查询失败")
		return
	}

	Success(c, expense)
}

// Update 更新消费记录
// @Summary 更新消费记录
// @Description 更新指定的消费记录。以新旧金额之差校验预算，超出收入上限时拒绝。
// @Tags 消费记录
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "消费记录ID"
// @Param request body ExpenseRequest true "消费记录信息"
// @Success 200 {object} Response{data=ExpenseResponse} "更新成功"
// @Failure 400 {object} Response "参数错误或超出预算"
// @Failure 401 {object} Response "未授权"
// @Failure 404 {object} Response "记录不存在"
// @Router /api/v1/expenses/{id} [put]
func (h *ExpenseHandler) Update(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		BadRequest(c, "无效的ID")
		return
	}

	var req ExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "参数错误"))
		return
	}
	input, err := req.toInput()
	if err != nil {
		BadRequest(c, "时间格式错误，应为: 2006-01-02 15:04:05")
		return
	}

	expense, remaining, err := h.ledger.UpdateExpense(userID, uint(id), input)
	if err != nil {
		LedgerError(c, err, "更新失败")
		return
	}

	SuccessWithMessage(c, "更新成功", ExpenseResponse{Expense: expense, Remaining: remaining})
}

// Delete 删除消费记录
// @Summary 删除消费记录
// @Description 删除指定的消费记录并同步减少支出总额。删除不做预算校验。
// @Tags 消费记录
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "消费记录ID"
// @Success 200 {object} Response{data=ExpenseResponse} "删除成功"
// @Failure 401 {object} Response "未授权"
// @Failure 404 {object} Response "记录不存在"
// @Router /api/v1/expenses/{id} [delete]
func (h *ExpenseHandler) Delete(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		BadRequest(c, "无效的ID")
		return
	}

	expense, remaining, err := h.ledger.DeleteExpense(userID, uint(id))
	if err != nil {
		LedgerError(c, err, "删除失败")
		return
	}

	SuccessWithMessage(c, "删除成功", ExpenseResponse{Expense: expense, Remaining: remaining})
}

// GetStatistics 获取消费统计
// @Summary 获取消费统计
// @Description 获取指定时间范围内的消费总额与按类别统计
// @Tags 消费记录
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param start_time query string false "开始时间 (2024-01-01)"
// @Param end_time query string false "结束时间 (2024-12-31)"
// @Success 200 {object} Response "获取成功"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/expenses/statistics [get]
func (h *ExpenseHandler) GetStatistics(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	query := database.DB.Model(&models.Expense{}).Where("user_id = ?", userID)

	// 时间范围筛选
	if s := c.Query("start_time"); s != "" {
		if t, err := time.ParseInLocation("2006-01-02", s, time.Local); err == nil {
			query = query.Where("expense_time >= ?", t)
		}
	}
	if e := c.Query("end_time"); e != "" {
		if t, err := time.ParseInLocation("2006-01-02", e, time.Local); err == nil {
			t = t.Add(24*time.Hour - time.Second)
			query = query.Where("expense_time <= ?", t)
		}
	}

	// 总金额
	var totalAmount float64
	query.Select("COALESCE(SUM(amount), 0)").Scan(&totalAmount)

	// 按类别统计
	type CategoryStat struct {
		Category string  `json:"category"`
		Total    float64 `json:"total"`
		Count    int64   `json:"count"`
	}
	var categoryStats []CategoryStat

	database.DB.Model(&models.Expense{}).
		Select("category, SUM(amount) as total, COUNT(*) as count").
		Where("user_id = ?", userID).
		Group("category").
		Order("total DESC").
		Scan(&categoryStats)

	Success(c, gin.H{
		"total_amount":   totalAmount,
		"category_stats": categoryStats,
	})
}

// GetCategories 获取消费类别列表
// @Summary 获取消费类别列表
// @Description 获取所有可用的消费类别，按排序字段升序排列
// @Tags 消费记录
// @Accept json
// @Produce json
// @Success 200 {object} Response{data=[]models.ExpenseCategory} "获取成功"
// @Failure 500 {object} Response "查询失败"
// @Router /api/v1/categories [get]
func (h *ExpenseHandler) GetCategories(c *gin.Context) {
	var list []models.ExpenseCategory
	if err := database.DB.Order("sort ASC, id ASC").Find(&list).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "查询失败"))
		return
	}
	Success(c, list)
}
