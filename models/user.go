package models

import (
	"time"

	"gorm.io/gorm"
)

// User 用户模型（账户）
// TotalExpenses 是派生的缓存值：必须等于该用户所有消费记录金额之和，
// 只允许账本服务（service.Ledger / service.Reconciler）写入。
type User struct {
	ID            uint           `json:"id" gorm:"primaryKey"`
	Username      string         `json:"username" gorm:"uniqueIndex;size:50;not null"`
	Password      string         `json:"-" gorm:"size:255;not null"`
	Email         string         `json:"email" gorm:"size:100"`
	TotalIncome   float64        `json:"total_income" gorm:"type:decimal(12,2);not null;default:0"`   // 申报的收入上限
	TotalExpenses float64        `json:"total_expenses" gorm:"type:decimal(12,2);not null;default:0"` // 缓存的支出总额
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName 设置表名
func (User) TableName() string {
	return "users"
}

// Remaining 剩余可支配额度
func (u *User) Remaining() float64 {
	return u.TotalIncome - u.TotalExpenses
}
