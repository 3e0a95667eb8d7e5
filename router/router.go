package router

import (
	"time"

	"spendsmart/api"
	"spendsmart/config"
	"spendsmart/database"
	_ "spendsmart/docs"
	"spendsmart/middleware"
	"spendsmart/service"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// SetupRouter 设置路由
func SetupRouter(cfg *config.Config) *gin.Engine {
	// 设置运行模式
	gin.SetMode(cfg.Server.Mode)

	r := gin.Default()

	// 全局中间件
	r.Use(CORSMiddleware())
	r.Use(middleware.RequestID())

	// 账本服务：对账器 + 协调器
	reconciler := service.NewReconciler(database.GetDB())
	ledger := service.NewLedger(database.GetDB(), reconciler, cfg.Ledger.MaxRetries)
	// 可选的后台对账巡检
	reconciler.StartSweep(cfg.Ledger.SweepInterval, nil)

	// Swagger 文档
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// API v1 路由组
	v1 := r.Group("/api/v1")
	{
		// 认证相关路由（无需登录）
		authHandler := api.NewAuthHandler(cfg)
		auth := v1.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", middleware.LoginRateLimit(10, time.Minute), authHandler.Login)

			// 邮箱验证码
			auth.POST("/send-code", authHandler.SendVerificationCode)
			auth.POST("/verify-code", authHandler.VerifyEmailCode)

			// 密码重置
			auth.POST("/password/request-reset", authHandler.RequestPasswordReset)
			auth.POST("/password/verify-code", authHandler.VerifyResetCode)
			auth.POST("/password/reset", authHandler.ResetPassword)
		}

		// 消费类别（无需登录）
		expenseHandler := api.NewExpenseHandler(ledger)
		v1.GET("/categories", expenseHandler.GetCategories)

		// 需要 JWT 认证的路由
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth())
		{
			// 用户相关
			authorized.GET("/auth/profile", authHandler.GetProfile)
			authorized.PUT("/auth/password", authHandler.ChangePassword)

			// 消费记录相关
			expenses := authorized.Group("/expenses")
			{
				expenses.POST("", expenseHandler.Create)
				expenses.GET("", expenseHandler.List)
				expenses.GET("/statistics", expenseHandler.GetStatistics)
				expenses.GET("/:id", expenseHandler.Get)
				expenses.PUT("/:id", expenseHandler.Update)
				expenses.DELETE("/:id", expenseHandler.Delete)
			}

			// 预算相关
			budgetHandler := api.NewBudgetHandler(ledger, reconciler)
			budget := authorized.Group("/budget")
			{
				budget.GET("/income", budgetHandler.GetIncome)
				budget.PUT("/income", budgetHandler.SetIncome)
				budget.GET("/summary", budgetHandler.Summary)
				budget.POST("/reconcile", budgetHandler.Reconcile)
			}

			// 导出相关
			exportHandler := api.NewExportHandler()
			export := authorized.Group("/export")
			{
				export.GET("/csv", exportHandler.ExportCSV)
				export.GET("/json", exportHandler.ExportJSON)
				export.GET("/excel", exportHandler.ExportExcel)
			}
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})

	return r
}

// CORSMiddleware CORS 跨域中间件
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
