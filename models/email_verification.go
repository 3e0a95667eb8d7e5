package models

import (
	"crypto/rand"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// 验证码用途
const (
	VerificationTypeRegister = "register" // 注册验证
	VerificationTypeReset    = "reset"    // 密码重置
)

// EmailVerification 邮箱验证码模型
type EmailVerification struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	Email     string         `json:"email" gorm:"index;size:100;not null"`
	Code      string         `json:"code" gorm:"size:6;not null"` // 6位数字验证码
	Type      string         `json:"type" gorm:"size:20;not null;index"`
	ExpiresAt time.Time      `json:"expires_at" gorm:"not null"`
	Used      bool           `json:"used" gorm:"default:false"`
	CreatedAt time.Time      `json:"created_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName 设置表名
func (EmailVerification) TableName() string {
	return "email_verifications"
}

// IsExpired 检查验证码是否过期
func (e *EmailVerification) IsExpired() bool {
	return time.Now().After(e.ExpiresAt)
}

// IsValid 检查验证码是否有效
func (e *EmailVerification) IsValid() bool {
	return !e.Used && !e.IsExpired()
}

// GenerateVerificationCode 生成6位数字验证码
func GenerateVerificationCode() (string, error) {
	b := make([]byte, 3)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	code := int(b[0])<<16 | int(b[1])<<8 | int(b[2])
	code = code%900000 + 100000
	return fmt.Sprintf("%06d", code), nil
}
