package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"collaborative-canvas/internal/service"
)

// AuthHandler 封装了与用户认证相关的 HTTP 处理逻辑
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler 创建 AuthHandler 实例
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// RegisterRequest 定义注册请求的结构体
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Password string `json:"password" binding:"required,min=6"`
	Email    string `json:"email" binding:"omitempty,email"` // 邮箱可选，填了必须是有效格式
}

// Register 处理用户注册请求
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	// 1. 绑定并验证输入 JSON
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).Warn("Handler.Register: Invalid input format")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "details": err.Error()})
		return
	}

	// 2. 调用 Service 层处理注册逻辑
	newUser, err := h.authService.Register(c.Request.Context(), req.Username, req.Password, req.Email)

	// 3. 处理 Service 返回的错误
	if err != nil {
		logCtx := logrus.WithFields(logrus.Fields{"username": req.Username, "email": req.Email})
		if errors.Is(err, service.ErrRegistrationFailed) {
			logCtx.WithError(err).Warn("Handler.Register: Registration failed (likely duplicate)")
			ErrorResponse(c, http.StatusBadRequest, err.Error())
		} else {
			logCtx.WithError(err).Error("Handler.Register: Internal error during registration")
			ErrorResponse(c, http.StatusInternalServerError, "Registration failed due to server error")
		}
		return
	}

	// 4. 注册成功响应，不回传密码等敏感字段
	logrus.WithField("user_id", newUser.ID).Info("Handler.Register: User registered successfully")
	SuccessResponse(c, http.StatusOK, gin.H{
		"message": "User registered successfully",
		"user_id": newUser.ID,
	})
}

// LoginRequest 定义登录请求的结构体
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse 定义登录成功的响应结构体
type LoginResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
}

// Login 处理用户登录请求
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	// 1. 绑定并验证输入 JSON
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).Warn("Handler.Login: Invalid input format")
		ErrorResponse(c, http.StatusBadRequest, "Invalid input: username and password required")
		return
	}

	// 2. 调用 Service 层处理登录逻辑
	token, err := h.authService.Login(c.Request.Context(), req.Username, req.Password)

	// 3. 处理 Service 返回的错误
	if err != nil {
		logCtx := logrus.WithField("username", req.Username)
		if errors.Is(err, service.ErrAuthenticationFailed) {
			logCtx.WithError(err).Warn("Handler.Login: Authentication failed")
			ErrorResponse(c, http.StatusUnauthorized, err.Error())
		} else {
			logCtx.WithError(err).Error("Handler.Login: Internal error during login")
			ErrorResponse(c, http.StatusInternalServerError, "Login failed due to server error")
		}
		return
	}

	// 4. 登录成功响应
	logrus.WithField("username", req.Username).Info("Handler.Login: User logged in successfully")
	SuccessResponse(c, http.StatusOK, LoginResponse{
		Message: "Login successful",
		Token:   token,
	})
}
