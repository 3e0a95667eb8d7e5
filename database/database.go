package database

import (
	"fmt"
	"log"

	"spendsmart/config"
	"spendsmart/models"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Init 初始化数据库连接
func Init(cfg *config.Config) error {
	// 构建 MySQL DSN 连接字符串
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=%s&parseTime=True&loc=Local",
		cfg.Database.Username,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.DBName,
		cfg.Database.Charset,
	)

	var err error
	DB, err = gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info),
	})
	if err != nil {
		return fmt.Errorf("连接数据库失败: %w", err)
	}

	// 获取底层 *sql.DB 连接池配置
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}

	// 设置连接池参数
	sqlDB.SetMaxIdleConns(10)  // 最大空闲连接数
	sqlDB.SetMaxOpenConns(100) // 最大打开连接数

	// 自动迁移数据库表
	if err := DB.AutoMigrate(
		&models.User{},
		&models.Expense{},
		&models.ExpenseCategory{},
		&models.EmailVerification{},
	); err != nil {
		return err
	}

	// 兼容历史数据：老版本没有 total_expenses 列，新列默认 0 会与已有消费记录
	// 产生偏差，启动时对这部分用户按消费记录重算一次
	_ = DB.Exec(`UPDATE users u
		SET u.total_expenses = (
			SELECT COALESCE(SUM(e.amount), 0) FROM expenses e
			WHERE e.user_id = u.id AND e.deleted_at IS NULL
		)
		WHERE u.total_expenses = 0
		  AND EXISTS (SELECT 1 FROM expenses e2 WHERE e2.user_id = u.id AND e2.deleted_at IS NULL)`).Error

	// 初始化默认消费类别（仅当表为空时）
	var catCount int64
	DB.Model(&models.ExpenseCategory{}).Count(&catCount)
	if catCount == 0 {
		// 默认类别对应的颜色（与前端 CSS 保持一致）
		colorMap := map[string]string{
			"餐饮": "#ef4444", // 红色
			"交通": "#3b82f6", // 蓝色
			"购物": "#a855f7", // 紫色
			"娱乐": "#ec4899", // 粉色
			"医疗": "#10b981", // 绿色
			"教育": "#f59e0b", // 橙色
			"住房": "#14b8a6", // 青色
			"其他": "#64748b", // 灰色
		}
		var cats []models.ExpenseCategory
		for i, name := range models.DefaultCategories() {
			color := colorMap[name]
			if color == "" {
				color = "#64748b" // 默认灰色
			}
			cats = append(cats, models.ExpenseCategory{
				Name:  name,
				Sort:  (i + 1) * 10,
				Color: color,
			})
		}
		if len(cats) > 0 {
			_ = DB.Create(&cats).Error
		}
	}

	log.Println("数据库初始化成功")
	return nil
}

// GetDB 获取数据库连接
func GetDB() *gorm.DB {
	return DB
}
