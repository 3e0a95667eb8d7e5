package service

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"spendsmart/models"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Ledger 账本一致性协调器
//
// 所有消费记录的增删改都必须经过这里：预算校验、记录写入和
// users.total_expenses 的调整在同一个事务内完成，事务开头对用户行
// 加 FOR UPDATE 锁，同一账户的并发操作因此串行化，不同账户互不阻塞。
// total_expenses 只通过 SQL 表达式增减，避免读-改-写丢失更新。
type Ledger struct {
	db         *gorm.DB
	reconciler *Reconciler
	maxRetries int
}

// NewLedger 创建账本协调器
func NewLedger(db *gorm.DB, reconciler *Reconciler, maxRetries int) *Ledger {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Ledger{db: db, reconciler: reconciler, maxRetries: maxRetries}
}

// ExpenseInput 消费记录写入参数
type ExpenseInput struct {
	Amount      float64
	Category    string
	Description string
	ExpenseTime time.Time
}

// ExpenseFilter 消费记录列表筛选条件
type ExpenseFilter struct {
	Category  string
	StartTime time.Time
	EndTime   time.Time
	Order     string // "asc" 按消费时间升序，默认降序
	Page      int
	PageSize  int
}

// BudgetSummary 预算概览
type BudgetSummary struct {
	TotalIncome   float64 `json:"total_income"`
	TotalExpenses float64 `json:"total_expenses"`
	Remaining     float64 `json:"remaining"`
}

// validateInput 校验写入参数，不合法时返回 ErrInvalidInput，未发生任何写入
func validateInput(in *ExpenseInput) error {
	if math.IsNaN(in.Amount) || math.IsInf(in.Amount, 0) || in.Amount <= 0 {
		return fmt.Errorf("%w: 金额必须为正数", ErrInvalidInput)
	}
	in.Category = strings.TrimSpace(in.Category)
	if in.Category == "" {
		return fmt.Errorf("%w: 类别不能为空", ErrInvalidInput)
	}
	if in.ExpenseTime.IsZero() {
		return fmt.Errorf("%w: 消费时间不能为空", ErrInvalidInput)
	}
	return nil
}

// lockAccount 在事务内对用户行加排他锁并读取
func lockAccount(tx *gorm.DB, userID uint) (*models.User, error) {
	var user models.User
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &user, nil
}

// isRetryableTxError MySQL 死锁(1213)或锁等待超时(1205)，整个事务可安全重做
func isRetryableTxError(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1213 || myErr.Number == 1205
	}
	return false
}

// isDomainError 业务拒绝类错误，无需重试也无需触发对账
func isDomainError(err error) bool {
	var be *BudgetError
	return errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrEntryNotFound) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.As(err, &be)
}

// runInTx 带重试地执行事务；重试耗尽返回 ErrConflict。
// 非业务失败时无法确定缓存值与记录是否一致（例如提交阶段出错），
// 返回前安排该账户对账，保证上层观察不到未修复的偏差。
func (l *Ledger) runInTx(userID uint, fn func(tx *gorm.DB) error) error {
	var err error
	for attempt := 0; attempt < l.maxRetries; attempt++ {
		err = l.db.Transaction(fn)
		if err == nil || !isRetryableTxError(err) {
			break
		}
	}
	if err == nil || isDomainError(err) {
		return err
	}
	if isRetryableTxError(err) {
		err = fmt.Errorf("%w: %v", ErrConflict, err)
	}
	if l.reconciler != nil {
		l.reconciler.Schedule(userID)
	}
	return err
}

// CreateExpense 创建消费记录
// 预算校验基于行锁下读到的最新缓存值：amount 大于剩余额度时拒绝，
// 不发生任何写入。成功时返回新记录与扣减后的剩余额度。
func (l *Ledger) CreateExpense(userID uint, in ExpenseInput) (*models.Expense, float64, error) {
	if err := validateInput(&in); err != nil {
		return nil, 0, err
	}

	var created models.Expense
	var remaining float64
	err := l.runInTx(userID, func(tx *gorm.DB) error {
		user, err := lockAccount(tx, userID)
		if err != nil {
			return err
		}

		rem := user.Remaining()
		if in.Amount > rem {
			return &BudgetError{Remaining: rem, TotalExpenses: user.TotalExpenses}
		}

		expense := models.Expense{
			UserID:      userID,
			Amount:      in.Amount,
			Category:    in.Category,
			Description: in.Description,
			ExpenseTime: in.ExpenseTime,
		}
		if err := tx.Create(&expense).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.User{}).Where("id = ?", userID).
			Update("total_expenses", gorm.Expr("total_expenses + ?", in.Amount)).Error; err != nil {
			return err
		}

		created = expense
		remaining = rem - in.Amount
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return &created, remaining, nil
}

// UpdateExpense 更新消费记录
// 以新旧金额之差校验预算：缓存支出加上差值不得超过收入上限。
// 记录字段更新与缓存值调整在同一事务内完成。
func (l *Ledger) UpdateExpense(userID, expenseID uint, in ExpenseInput) (*models.Expense, float64, error) {
	if err := validateInput(&in); err != nil {
		return nil, 0, err
	}

	var updated models.Expense
	var remaining float64
	err := l.runInTx(userID, func(tx *gorm.DB) error {
		user, err := lockAccount(tx, userID)
		if err != nil {
			return err
		}

		var expense models.Expense
		if err := tx.Where("id = ? AND user_id = ?", expenseID, userID).First(&expense).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrEntryNotFound
			}
			return err
		}

		delta := in.Amount - expense.Amount
		if user.TotalExpenses+delta > user.TotalIncome {
			return &BudgetError{Remaining: user.Remaining(), TotalExpenses: user.TotalExpenses}
		}

		updates := map[string]interface{}{
			"amount":       in.Amount,
			"category":     in.Category,
			"description":  in.Description,
			"expense_time": in.ExpenseTime,
		}
		if err := tx.Model(&expense).Updates(updates).Error; err != nil {
			return err
		}
		if delta != 0 {
			if err := tx.Model(&models.User{}).Where("id = ?", userID).
				Update("total_expenses", gorm.Expr("total_expenses + ?", delta)).Error; err != nil {
				return err
			}
		}

		expense.Amount = in.Amount
		expense.Category = in.Category
		expense.Description = in.Description
		expense.ExpenseTime = in.ExpenseTime
		updated = expense
		remaining = user.TotalIncome - (user.TotalExpenses + delta)
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return &updated, remaining, nil
}

// DeleteExpense 删除消费记录
// 删除只会减少支出总额，不做预算校验；返回被删记录与新的剩余额度。
func (l *Ledger) DeleteExpense(userID, expenseID uint) (*models.Expense, float64, error) {
	var deleted models.Expense
	var remaining float64
	err := l.runInTx(userID, func(tx *gorm.DB) error {
		user, err := lockAccount(tx, userID)
		if err != nil {
			return err
		}

		var expense models.Expense
		if err := tx.Where("id = ? AND user_id = ?", expenseID, userID).First(&expense).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrEntryNotFound
			}
			return err
		}

		if err := tx.Delete(&expense).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.User{}).Where("id = ?", userID).
			Update("total_expenses", gorm.Expr("total_expenses - ?", expense.Amount)).Error; err != nil {
			return err
		}

		deleted = expense
		remaining = user.Remaining() + expense.Amount
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return &deleted, remaining, nil
}

// GetExpense 获取单条消费记录（按归属用户隔离）
func (l *Ledger) GetExpense(userID, expenseID uint) (*models.Expense, error) {
	var expense models.Expense
	if err := l.db.Where("id = ? AND user_id = ?", expenseID, userID).First(&expense).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}
	return &expense, nil
}

// ListExpenses 获取消费记录列表，按消费时间排序
func (l *Ledger) ListExpenses(userID uint, f ExpenseFilter) ([]models.Expense, int64, error) {
	query := l.db.Model(&models.Expense{}).Where("user_id = ?", userID)

	if f.Category != "" {
		query = query.Where("category = ?", f.Category)
	}
	if !f.StartTime.IsZero() {
		query = query.Where("expense_time >= ?", f.StartTime)
	}
	if !f.EndTime.IsZero() {
		query = query.Where("expense_time <= ?", f.EndTime)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "expense_time DESC"
	if f.Order == "asc" {
		order = "expense_time ASC"
	}

	if f.Page <= 0 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = 10
	}
	if f.PageSize > 100 {
		f.PageSize = 100
	}

	var expenses []models.Expense
	offset := (f.Page - 1) * f.PageSize
	if err := query.Order(order).Offset(offset).Limit(f.PageSize).Find(&expenses).Error; err != nil {
		return nil, 0, err
	}
	return expenses, total, nil
}

// Summary 预算概览，基于当前账户快照计算剩余额度，不触发对账
func (l *Ledger) Summary(userID uint) (*BudgetSummary, error) {
	var user models.User
	if err := l.db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &BudgetSummary{
		TotalIncome:   user.TotalIncome,
		TotalExpenses: user.TotalExpenses,
		Remaining:     user.Remaining(),
	}, nil
}

// SetIncome 设置申报收入上限（绝对值覆盖）
// 允许调低到当前支出以下：已记录的消费不会被追溯作废，
// 只是之后的新增支出会一直被预算校验拒绝，直到收入调回或删减支出。
func (l *Ledger) SetIncome(userID uint, income float64) (*models.User, error) {
	if math.IsNaN(income) || math.IsInf(income, 0) || income < 0 {
		return nil, fmt.Errorf("%w: 收入必须为非负数", ErrInvalidInput)
	}

	var user models.User
	err := l.runInTx(userID, func(tx *gorm.DB) error {
		u, err := lockAccount(tx, userID)
		if err != nil {
			return err
		}
		if err := tx.Model(u).Update("total_income", income).Error; err != nil {
			return err
		}
		u.TotalIncome = income
		user = *u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}
