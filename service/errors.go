package service

import (
	"errors"
	"fmt"
)

// 账本操作错误分类。调用方（api 层）按类别映射 HTTP 状态码，
// 除 BudgetError 外均为哨兵错误，用 errors.Is 判断。
var (
	// ErrAccountNotFound 账户不存在
	ErrAccountNotFound = errors.New("账户不存在")
	// ErrEntryNotFound 消费记录不存在，或属于其他用户（两者对调用方不可区分）
	ErrEntryNotFound = errors.New("消费记录不存在")
	// ErrInvalidInput 参数缺失或非法，拒绝时未发生任何写入
	ErrInvalidInput = errors.New("参数无效")
	// ErrConflict 并发冲突，重试次数耗尽
	ErrConflict = errors.New("操作冲突，请稍后重试")
)

// BudgetError 超出预算错误
// 携带计算出的剩余额度与当前支出总额，供调用方展示
type BudgetError struct {
	Remaining     float64 // 剩余可支配额度
	TotalExpenses float64 // 当前支出总额
}

func (e *BudgetError) Error() string {
	return fmt.Sprintf("支出超出剩余预算（剩余 %.2f）", e.Remaining)
}
