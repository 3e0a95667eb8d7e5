package api

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"time"

	"spendsmart/database"
	"spendsmart/middleware"
	"spendsmart/models"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

// ExportHandler 导出处理器
type ExportHandler struct{}

// NewExportHandler 创建导出处理器
func NewExportHandler() *ExportHandler {
	return &ExportHandler{}
}

// queryExpenses 按时间范围查询当前用户的消费记录
func (h *ExportHandler) queryExpenses(c *gin.Context) ([]models.Expense, bool) {
	userID := middleware.GetCurrentUserID(c)

	startTimeStr := c.Query("start_time")
	endTimeStr := c.Query("end_time")
	if startTimeStr == "" || endTimeStr == "" {
		BadRequest(c, "请提供开始时间和结束时间")
		return nil, false
	}

	startTime, err := time.ParseInLocation("2006-01-02", startTimeStr, time.Local)
	if err != nil {
		BadRequest(c, "开始时间格式错误，应为: 2006-01-02")
		return nil, false
	}
	endTime, err := time.ParseInLocation("2006-01-02", endTimeStr, time.Local)
	if err != nil {
		BadRequest(c, "结束时间格式错误，应为: 2006-01-02")
		return nil, false
	}
	endTime = endTime.Add(24*time.Hour - time.Second)

	var expenses []models.Expense
	if err := database.DB.Where("user_id = ? AND expense_time >= ? AND expense_time <= ?", userID, startTime, endTime).
		Order("expense_time DESC").
		Find(&expenses).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "查询数据失败"))
		return nil, false
	}
	return expenses, true
}

// ExportCSV 导出消费记录为 CSV
// @Summary 导出消费记录（CSV）
// @Description 根据时间范围导出消费记录为 CSV 文件
// @Tags 导出
// @Accept json
// @Produce text/csv
// @Security BearerAuth
// @Param start_time query string true "开始时间 (2024-01-01)"
// @Param end_time query string true "结束时间 (2024-12-31)"
// @Success 200 {file} file "CSV 文件"
// @Failure 400 {object} Response "请求参数错误"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/export/csv [get]
func (h *ExportHandler) ExportCSV(c *gin.Context) {
	expenses, ok := h.queryExpenses(c)
	if !ok {
		return
	}

	buf := new(bytes.Buffer)
	// 添加 BOM 以支持 Excel 中文显示
	buf.WriteString("\xEF\xBB\xBF")

	writer := csv.NewWriter(buf)
	headers := []string{"ID", "金额", "类别", "描述", "消费时间", "创建时间"}
	if err := writer.Write(headers); err != nil {
		InternalError(c, "生成 CSV 失败")
		return
	}
	for _, expense := range expenses {
		row := []string{
			fmt.Sprintf("%d", expense.ID),
			fmt.Sprintf("%.2f", expense.Amount),
			expense.Category,
			expense.Description,
			expense.ExpenseTime.Format("2006-01-02 15:04:05"),
			expense.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		if err := writer.Write(row); err != nil {
			InternalError(c, "生成 CSV 失败")
			return
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		InternalError(c, "生成 CSV 失败")
		return
	}

	filename := fmt.Sprintf("expenses_%s.csv", time.Now().Format("20060102150405"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// ExportJSON 导出消费记录为 JSON
// @Summary 导出消费记录（JSON）
// @Description 根据时间范围导出消费记录为 JSON 文件
// @Tags 导出
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param start_time query string true "开始时间 (2024-01-01)"
// @Param end_time query string true "结束时间 (2024-12-31)"
// @Success 200 {file} file "JSON 文件"
// @Failure 400 {object} Response "请求参数错误"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/export/json [get]
func (h *ExportHandler) ExportJSON(c *gin.Context) {
	expenses, ok := h.queryExpenses(c)
	if !ok {
		return
	}

	filename := fmt.Sprintf("expenses_%s.json", time.Now().Format("20060102150405"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.JSON(http.StatusOK, gin.H{
		"count":    len(expenses),
		"expenses": expenses,
	})
}

// ExportExcel 导出消费记录为 Excel
// @Summary 导出消费记录（Excel）
// @Description 根据时间范围导出消费记录为 xlsx 文件
// @Tags 导出
// @Accept json
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param start_time query string true "开始时间 (2024-01-01)"
// @Param end_time query string true "结束时间 (2024-12-31)"
// @Success 200 {file} file "Excel 文件"
// @Failure 400 {object} Response "请求参数错误"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/export/excel [get]
func (h *ExportHandler) ExportExcel(c *gin.Context) {
	expenses, ok := h.queryExpenses(c)
	if !ok {
		return
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "消费记录"
	index, err := f.NewSheet(sheet)
	if err != nil {
		InternalError(c, "生成 Excel 失败")
		return
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headers := []string{"ID", "金额", "类别", "描述", "消费时间", "创建时间"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, header)
	}

	for rowIdx, expense := range expenses {
		values := []interface{}{
			expense.ID,
			expense.Amount,
			expense.Category,
			expense.Description,
			expense.ExpenseTime.Format("2006-01-02 15:04:05"),
			expense.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		for colIdx, v := range values {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			f.SetCellValue(sheet, cell, v)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		InternalError(c, "生成 Excel 失败")
		return
	}

	filename := fmt.Sprintf("expenses_%s.xlsx", time.Now().Format("20060102150405"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}
