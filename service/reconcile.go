package service

import (
	"errors"
	"log"
	"strconv"
	"time"

	"spendsmart/models"

	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Reconciler 对账器
//
// 消费记录集合是事实来源，users.total_expenses 只是缓存投影。
// Reconcile 扫描用户全部消费记录重算总额并覆盖缓存值，是怀疑缓存
// 漂移时的权威修复路径。同一账户的并发对账经 singleflight 合并为
// 一次执行，且重算在用户行锁下进行，不会与协调器的写入交错。
type Reconciler struct {
	db    *gorm.DB
	group singleflight.Group
}

// NewReconciler 创建对账器
func NewReconciler(db *gorm.DB) *Reconciler {
	return &Reconciler{db: db}
}

// Reconcile 对指定账户重算支出总额并覆盖缓存值
// 幂等：期间无并发写入时，连续执行结果相同。
func (r *Reconciler) Reconcile(userID uint) (*models.User, error) {
	v, err, _ := r.group.Do(strconv.FormatUint(uint64(userID), 10), func() (interface{}, error) {
		return r.reconcile(userID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.User), nil
}

func (r *Reconciler) reconcile(userID uint) (*models.User, error) {
	var user models.User
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAccountNotFound
			}
			return err
		}

		var sum float64
		if err := tx.Model(&models.Expense{}).Where("user_id = ?", userID).
			Select("COALESCE(SUM(amount), 0)").Scan(&sum).Error; err != nil {
			return err
		}

		if sum != user.TotalExpenses {
			log.Printf("对账: 用户 %d 缓存支出 %.2f 与实际 %.2f 不一致，已修正", userID, user.TotalExpenses, sum)
		}
		if err := tx.Model(&user).Update("total_expenses", sum).Error; err != nil {
			return err
		}
		user.TotalExpenses = sum
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Schedule 异步安排一次对账，用于写路径结果未知时的兜底修复
// 尽力而为：失败退避重试若干次后记录日志放弃，等待下一次巡检或手动触发。
func (r *Reconciler) Schedule(userID uint) {
	go func() {
		for attempt := 1; attempt <= 3; attempt++ {
			if _, err := r.Reconcile(userID); err == nil {
				return
			} else if attempt == 3 {
				log.Printf("对账失败: 用户 %d 自动对账重试耗尽: %v", userID, err)
				return
			}
			time.Sleep(time.Duration(attempt) * time.Second)
		}
	}()
}

// StartSweep 启动周期性对账巡检，interval <= 0 时不启动
// 每轮逐个账户对账，账户间串行以免制造额外锁竞争。
func (r *Reconciler) StartSweep(interval time.Duration, stop <-chan struct{}) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				r.sweep()
			}
		}
	}()
}

func (r *Reconciler) sweep() {
	var ids []uint
	if err := r.db.Model(&models.User{}).Pluck("id", &ids).Error; err != nil {
		log.Printf("对账巡检: 读取用户列表失败: %v", err)
		return
	}
	for _, id := range ids {
		if _, err := r.Reconcile(id); err != nil {
			log.Printf("对账巡检: 用户 %d 对账失败: %v", id, err)
		}
	}
}
