package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"collaborative-canvas/internal/domain"
	"collaborative-canvas/internal/identity"
	"collaborative-canvas/internal/repository"

	"github.com/golang-jwt/jwt/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// accessLogDedupeWindow 内同一 (画布, 用户, 动作) 的重复访问只记录一次审计。
const accessLogDedupeWindow = time.Hour

// AuthService 负责用户认证相关的业务逻辑:
// 注册/登录签发令牌，以及同步连接建立时的令牌校验和访问审计。
type AuthService struct {
	userRepo   repository.UserRepository
	accessRepo repository.AccessLogRepository
	verifier   identity.Verifier
	jwtSecret  []byte        // 存储密钥的字节形式
	jwtExpiry  time.Duration // JWT 过期时间
}

// NewAuthService 创建 AuthService 实例。
// jwtSecretKey 应从安全配置中获取，jwtExpiryHours 定义 token 过期的小时数。
func NewAuthService(userRepo repository.UserRepository, accessRepo repository.AccessLogRepository, verifier identity.Verifier, jwtSecretKey string, jwtExpiryHours int) (*AuthService, error) {
	if userRepo == nil {
		panic("UserRepository cannot be nil for AuthService")
	}
	if accessRepo == nil {
		panic("AccessLogRepository cannot be nil for AuthService")
	}
	if verifier == nil {
		panic("identity.Verifier cannot be nil for AuthService")
	}
	if jwtSecretKey == "" {
		return nil, fmt.Errorf("JWT secret key cannot be empty")
	}
	if jwtExpiryHours <= 0 {
		jwtExpiryHours = 24 // 默认 24 小时
	}
	return &AuthService{
		userRepo:   userRepo,
		accessRepo: accessRepo,
		verifier:   verifier,
		jwtSecret:  []byte(jwtSecretKey),
		jwtExpiry:  time.Duration(jwtExpiryHours) * time.Hour,
	}, nil
}

// Register 处理用户注册。
func (s *AuthService) Register(ctx context.Context, username, password, email string) (*domain.User, error) {
	logCtx := logrus.WithFields(logrus.Fields{"username": username, "email": email})

	if username == "" || password == "" {
		return nil, fmt.Errorf("username and password are required")
	}

	hashedPassword, err := hashPassword(password)
	if err != nil {
		logCtx.WithError(err).Error("Failed to hash password during registration")
		return nil, ErrInternalServer
	}

	user := &domain.User{
		Username: username,
		Password: hashedPassword,
		Email:    email,
	}

	err = s.userRepo.Save(ctx, user)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			logCtx.WithError(err).Warn("Registration failed: Username or email already exists")
			return nil, ErrRegistrationFailed
		}
		logCtx.WithError(err).Error("Database error during user creation")
		return nil, ErrInternalServer
	}

	logCtx.WithField("user_id", user.ID).Info("User registered successfully")
	user.Password = "" // 清除密码哈希再返回
	return user, nil
}

// Login 处理用户登录，成功时返回签发的 JWT。
func (s *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	logCtx := logrus.WithField("username", username)

	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			logCtx.WithError(err).Warn("Login attempt failed: User not found")
		} else {
			logCtx.WithError(err).Warn("Login attempt failed: Error finding user")
		}
		return "", ErrAuthenticationFailed // 对客户端统一返回认证失败
	}
	// 防御性检查，以防仓库实现返回 nil, nil
	if user == nil {
		logCtx.Warn("Login attempt failed: User not found (repo returned nil user without error)")
		return "", ErrAuthenticationFailed
	}

	if !checkPassword(password, user.Password) {
		logCtx.Warn("Login attempt failed: Invalid password")
		return "", ErrAuthenticationFailed
	}

	token, err := s.generateJWT(user)
	if err != nil {
		logCtx.WithError(err).Error("Failed to generate JWT token during login")
		return "", ErrInternalServer
	}

	logCtx.WithField("user_id", user.ID).Info("User logged in successfully")
	return token, nil
}

// Authenticate 校验同步连接携带的令牌并返回用户身份。
// 令牌缺失、无效或不含用户 ID 时一律返回 ErrUnauthorized，调用方应拒绝连接。
// 校验通过后尽力记录一条访问审计，审计失败不影响连接建立。
func (s *AuthService) Authenticate(ctx context.Context, token, canvasID string) (identity.Identity, error) {
	logCtx := logrus.WithField("canvas_id", canvasID)

	if token == "" {
		logCtx.Warn("Connection auth failed: missing token")
		return identity.Identity{}, ErrUnauthorized
	}

	ident, err := s.verifier.Verify(ctx, token)
	if err != nil {
		logCtx.WithError(err).Warn("Connection auth failed: invalid token")
		return identity.Identity{}, ErrUnauthorized
	}
	if ident.UserID == "" {
		logCtx.Warn("Connection auth failed: token carries no user id")
		return identity.Identity{}, ErrUnauthorized
	}

	s.recordAccess(ctx, canvasID, ident.UserID)
	return ident, nil
}

// recordAccess 尽力写入一条访问审计记录。
// 查询或写入失败只记日志，绝不向调用方传播。
func (s *AuthService) recordAccess(ctx context.Context, canvasID, userID string) {
	logCtx := logrus.WithFields(logrus.Fields{"canvas_id": canvasID, "user_id": userID})

	since := time.Now().Add(-accessLogDedupeWindow)
	_, err := s.accessRepo.FindRecent(ctx, canvasID, userID, domain.ActionAccessed, since)
	if err == nil {
		// 窗口内已有记录，去重
		return
	}
	if !errors.Is(err, repository.ErrNotFound) {
		logCtx.WithError(err).Warn("Access audit lookup failed, skipping audit entry")
		return
	}

	entry := &domain.CanvasAccessLog{
		CanvasID: canvasID,
		UserID:   userID,
		Action:   domain.ActionAccessed,
	}
	if err := s.accessRepo.Insert(ctx, entry); err != nil {
		logCtx.WithError(err).Warn("Failed to insert access audit entry")
	}
}

// --- 私有辅助函数 ---

// hashPassword 使用 bcrypt 对密码进行哈希处理
func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to generate hash from password: %w", err)
	}
	return string(bytes), nil
}

// checkPassword 验证提供的密码是否与存储的哈希匹配
func checkPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// generateJWT 为指定用户生成 JWT Token。
// email 声明供连接校验后构建完整身份使用。
func (s *AuthService) generateJWT(user *domain.User) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": user.ID,
		"email":   user.Email,
		"exp":     time.Now().Add(s.jwtExpiry).Unix(),
		"iat":     time.Now().Unix(),
	})
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}
