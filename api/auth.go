package api

import (
	"time"

	"spendsmart/config"
	"spendsmart/database"
	"spendsmart/middleware"
	"spendsmart/models"
	"spendsmart/service"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// AuthHandler 认证处理器
type AuthHandler struct {
	cfg          *config.Config
	emailService *service.EmailService
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		cfg:          cfg,
		emailService: service.NewEmailService(&cfg.Email),
	}
}

// RegisterRequest 注册请求
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50" example:"testuser"`
	Password string `json:"password" binding:"required,min=6,max=50" example:"password123"`
	Email    string `json:"email" binding:"omitempty,email" example:"test@example.com"`
}

// LoginRequest 登录请求（支持用户名或邮箱）
type LoginRequest struct {
	Username string `json:"username" binding:"required" example:"testuser"` // 可为用户名或邮箱
	Password string `json:"password" binding:"required" example:"password123"`
}

// LoginResponse 登录响应
type LoginResponse struct {
	Token    string      `json:"token"`
	UserInfo models.User `json:"user_info"`
}

// Register 用户注册
// @Summary 用户注册
// @Description 创建新用户账号，申报收入默认 0，首次记账前需要先设置收入
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "注册信息"
// @Success 200 {object} Response{data=models.User} "注册成功"
// @Failure 400 {object} Response "请求参数错误"
// @Failure 500 {object} Response "服务器错误"
// @Router /api/v1/auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "参数错误"))
		return
	}

	// 检查用户名是否已存在
	var existingUser models.User
	if err := database.DB.Where("username = ?", req.Username).First(&existingUser).Error; err == nil {
		BadRequest(c, "用户名已存在")
		return
	}

	// 加密密码
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		InternalError(c, "密码加密失败")
		return
	}

	user := models.User{
		Username: req.Username,
		Password: string(hashedPassword),
		Email:    req.Email,
	}

	if err := database.DB.Create(&user).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "创建用户失败"))
		return
	}

	SuccessWithMessage(c, "注册成功", user)
}

// Login 用户登录
// @Summary 用户登录
// @Description 用户登录获取 JWT token
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body LoginRequest true "登录信息"
// @Success 200 {object} Response{data=LoginResponse} "登录成功"
// @Failure 400 {object} Response "请求参数错误"
// @Failure 401 {object} Response "用户名或密码错误"
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "参数错误"))
		return
	}

	// 查找用户（支持用户名或邮箱）
	var user models.User
	if err := database.DB.Where("username = ? OR email = ?", req.Username, req.Username).First(&user).Error; err != nil {
		Unauthorized(c, "用户名或密码错误")
		return
	}

	// 验证密码
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		Unauthorized(c, "用户名或密码错误")
		return
	}

	// 生成 token
	token, err := middleware.GenerateToken(user.ID, user.Username, h.cfg.JWT.ExpireTime)
	if err != nil {
		InternalError(c, "生成 token 失败")
		return
	}

	Success(c, LoginResponse{
		Token:    token,
		UserInfo: user,
	})
}

// GetProfile 获取用户信息
// @Summary 获取当前用户信息
// @Description 获取当前登录用户的详细信息，含申报收入与支出总额
// @Tags 认证
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=models.User} "获取成功"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/auth/profile [get]
func (h *AuthHandler) GetProfile(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	var user models.User
	if err := database.DB.First(&user, userID).Error; err != nil {
		NotFound(c, "用户不存在")
		return
	}

	Success(c, user)
}

// ChangePasswordRequest 修改密码请求
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required" example:"oldpassword123"`
	NewPassword string `json:"new_password" binding:"required,min=6,max=50" example:"newpassword123"`
}

// ChangePassword 修改密码
// @Summary 修改密码
// @Description 修改当前用户密码
// @Tags 认证
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ChangePasswordRequest true "密码信息"
// @Success 200 {object} Response "修改成功"
// @Failure 400 {object} Response "请求参数错误"
// @Failure 401 {object} Response "原密码错误"
// @Router /api/v1/auth/password [put]
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "参数错误"))
		return
	}

	var user models.User
	if err := database.DB.First(&user, userID).Error; err != nil {
		NotFound(c, "用户不存在")
		return
	}

	// 验证旧密码
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.OldPassword)); err != nil {
		Unauthorized(c, "原密码错误")
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		InternalError(c, "密码加密失败")
		return
	}

	if err := database.DB.Model(&user).Update("password", string(hashedPassword)).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "更新密码失败"))
		return
	}

	SuccessWithMessage(c, "密码修改成功", nil)
}

// ============== 邮箱验证码 ==============

// SendVerificationCodeRequest 发送验证码请求
type SendVerificationCodeRequest struct {
	Email string `json:"email" binding:"required,email" example:"test@example.com"`
}

// SendVerificationCode 发送邮箱验证码
// @Summary 发送邮箱验证码
// @Description 发送注册用邮箱验证码，有效期 10 分钟
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body SendVerificationCodeRequest true "验证码请求信息"
// @Success 200 {object} Response "发送成功"
// @Failure 400 {object} Response "请求参数错误"
// @Failure 500 {object} Response "服务器错误"
// @Router /api/v1/auth/send-code [post]
func (h *AuthHandler) SendVerificationCode(c *gin.Context) {
	var req SendVerificationCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "请输入有效的邮箱地址")
		return
	}

	code, err := models.GenerateVerificationCode()
	if err != nil {
		InternalError(c, "生成验证码失败")
		return
	}

	verification := models.EmailVerification{
		Email:     req.Email,
		Code:      code,
		Type:      models.VerificationTypeRegister,
		ExpiresAt: time.Now().Add(10 * time.Minute),
	}
	if err := database.DB.Create(&verification).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "保存验证码失败"))
		return
	}

	if err := h.emailService.SendVerificationEmail(req.Email, code); err != nil {
		InternalError(c, SafeErrorMessage(err, "发送验证码失败"))
		return
	}

	SuccessWithMessage(c, "验证码已发送，请查收邮件", nil)
}

// VerifyCodeRequest 校验验证码请求
type VerifyCodeRequest struct {
	Email string `json:"email" binding:"required,email" example:"test@example.com"`
	Code  string `json:"code" binding:"required,len=6" example:"123456"`
}

// VerifyEmailCode 校验邮箱验证码
// @Summary 校验邮箱验证码
// @Description 校验注册验证码是否正确且未过期，校验通过后标记为已使用
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body VerifyCodeRequest true "校验信息"
// @Success 200 {object} Response "校验成功"
// @Failure 400 {object} Response "验证码错误或已过期"
// @Router /api/v1/auth/verify-code [post]
func (h *AuthHandler) VerifyEmailCode(c *gin.Context) {
	var req VerifyCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误")
		return
	}

	var verification models.EmailVerification
	if err := database.DB.Where("email = ? AND code = ? AND type = ?",
		req.Email, req.Code, models.VerificationTypeRegister).
		Order("created_at DESC").First(&verification).Error; err != nil {
		BadRequest(c, "验证码错误")
		return
	}

	if !verification.IsValid() {
		BadRequest(c, "验证码已过期或已使用")
		return
	}

	database.DB.Model(&verification).Update("used", true)
	SuccessWithMessage(c, "验证成功", nil)
}

// ============== 密码重置 ==============

// RequestPasswordResetRequest 请求密码重置
type RequestPasswordResetRequest struct {
	Email string `json:"email" binding:"required,email" example:"test@example.com"`
}

// RequestPasswordReset 请求密码重置（发送验证码）
// @Summary 请求密码重置
// @Description 向注册邮箱发送密码重置验证码。无论邮箱是否存在都返回成功，避免探测。
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body RequestPasswordResetRequest true "密码重置请求"
// @Success 200 {object} Response "发送成功"
// @Failure 400 {object} Response "请求参数错误"
// @Router /api/v1/auth/password/request-reset [post]
func (h *AuthHandler) RequestPasswordReset(c *gin.Context) {
	var req RequestPasswordResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "请输入有效的邮箱地址")
		return
	}

	// 邮箱未注册时不报错，防止账号探测
	var user models.User
	if err := database.DB.Where("email = ?", req.Email).First(&user).Error; err != nil {
		SuccessWithMessage(c, "如果该邮箱已注册，重置验证码将发送到您的邮箱", nil)
		return
	}

	code, err := models.GenerateVerificationCode()
	if err != nil {
		InternalError(c, "生成验证码失败")
		return
	}

	verification := models.EmailVerification{
		Email:     req.Email,
		Code:      code,
		Type:      models.VerificationTypeReset,
		ExpiresAt: time.Now().Add(10 * time.Minute),
	}
	if err := database.DB.Create(&verification).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "保存验证码失败"))
		return
	}

	if err := h.emailService.SendPasswordResetEmail(req.Email, user.Username, code); err != nil {
		InternalError(c, SafeErrorMessage(err, "发送验证码失败"))
		return
	}

	SuccessWithMessage(c, "如果该邮箱已注册，重置验证码将发送到您的邮箱", nil)
}

// VerifyResetCode 校验密码重置验证码
// @Summary 校验密码重置验证码
// @Description 预校验重置验证码是否正确且未过期。只做校验不标记使用，实际重置在重置接口完成。
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body VerifyCodeRequest true "校验信息"
// @Success 200 {object} Response "校验成功"
// @Failure 400 {object} Response "验证码错误或已过期"
// @Router /api/v1/auth/password/verify-code [post]
func (h *AuthHandler) VerifyResetCode(c *gin.Context) {
	var req VerifyCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误")
		return
	}

	var verification models.EmailVerification
	if err := database.DB.Where("email = ? AND code = ? AND type = ?",
		req.Email, req.Code, models.VerificationTypeReset).
		Order("created_at DESC").First(&verification).Error; err != nil {
		BadRequest(c, "验证码错误")
		return
	}
	if !verification.IsValid() {
		BadRequest(c, "验证码已过期或已使用")
		return
	}

	SuccessWithMessage(c, "验证成功", nil)
}

// ResetPasswordRequest 重置密码请求
type ResetPasswordRequest struct {
	Email       string `json:"email" binding:"required,email" example:"test@example.com"`
	Code        string `json:"code" binding:"required,len=6" example:"123456"`
	NewPassword string `json:"new_password" binding:"required,min=6,max=50" example:"newpassword123"`
}

// ResetPassword 重置密码
// @Summary 重置密码
// @Description 校验验证码后重置密码
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body ResetPasswordRequest true "重置信息"
// @Success 200 {object} Response "重置成功"
// @Failure 400 {object} Response "验证码错误或已过期"
// @Router /api/v1/auth/password/reset [post]
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误")
		return
	}

	var verification models.EmailVerification
	if err := database.DB.Where("email = ? AND code = ? AND type = ?",
		req.Email, req.Code, models.VerificationTypeReset).
		Order("created_at DESC").First(&verification).Error; err != nil {
		BadRequest(c, "验证码错误")
		return
	}
	if !verification.IsValid() {
		BadRequest(c, "验证码已过期或已使用")
		return
	}

	var user models.User
	if err := database.DB.Where("email = ?", req.Email).First(&user).Error; err != nil {
		NotFound(c, "用户不存在")
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		InternalError(c, "密码加密失败")
		return
	}

	if err := database.DB.Model(&user).Update("password", string(hashedPassword)).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "重置密码失败"))
		return
	}
	database.DB.Model(&verification).Update("used", true)

	SuccessWithMessage(c, "密码重置成功", nil)
}
