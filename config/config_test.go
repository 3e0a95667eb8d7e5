package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	defer func() { GlobalConfig = nil }()

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	// 内置默认配置
	assert.Equal(t, ":8080", cfg.Server.Port)
	assert.Equal(t, "spendsmart", cfg.Database.DBName)
	assert.Equal(t, 24, cfg.JWT.ExpireHours)
	assert.Equal(t, 24*time.Hour, cfg.JWT.ExpireTime)
	assert.False(t, cfg.Email.Enabled)

	// 账本配置兜底
	assert.Equal(t, 3, cfg.Ledger.MaxRetries)
	assert.Equal(t, time.Duration(0), cfg.Ledger.SweepInterval)

	// 全局实例已保存
	assert.Same(t, cfg, GlobalConfig)
}

func TestSafeErrorMessage(t *testing.T) {
	fallback := "操作失败"
	testErr := errors.New("internal database error")

	// nil err 返回 fallback
	assert.Equal(t, fallback, SafeErrorMessage(nil, fallback))

	// release 模式返回 fallback，不暴露错误详情
	GlobalConfig = &Config{Server: ServerConfig{Mode: "release"}}
	defer func() { GlobalConfig = nil }()
	assert.Equal(t, fallback, SafeErrorMessage(testErr, fallback))

	// debug 模式返回 err.Error()
	GlobalConfig = &Config{Server: ServerConfig{Mode: "debug"}}
	assert.Equal(t, "internal database error", SafeErrorMessage(testErr, fallback))

	// GlobalConfig 为 nil 时返回 err.Error()（视为开发环境）
	GlobalConfig = nil
	assert.Equal(t, "internal database error", SafeErrorMessage(testErr, fallback))
}
