package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/sirupsen/logrus"
)

// ContextUserIDKey 是认证中间件写入 gin.Context 的用户 ID 键。
const ContextUserIDKey = "user_id"

// ErrMissingAuthHeader 表示请求缺少 Authorization 头
var ErrMissingAuthHeader = errors.New("missing Authorization header")

// Auth 返回一个 Gin 中间件，用于验证 REST 请求携带的 JWT。
// jwtSecret: 用于验证签名的密钥，必须提供。
func Auth(jwtSecret string) gin.HandlerFunc {
	// 在创建中间件时就进行检查，避免运行时 panic
	if jwtSecret == "" {
		panic("JWT secret cannot be empty for Auth middleware")
	}

	return func(c *gin.Context) {
		// 1. 从请求头提取 Token
		tokenStr, err := extractToken(c)
		if err != nil {
			if errors.Is(err, ErrMissingAuthHeader) {
				logrus.Warn("Auth middleware: Missing Authorization header")
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required"})
			} else if errors.Is(err, jwt.ErrTokenMalformed) {
				logrus.Warnf("Auth middleware: Malformed token format: %v", err)
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token format"})
			} else {
				logrus.WithError(err).Warn("Auth middleware: Error extracting token")
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Could not process token"})
			}
			c.Abort()
			return
		}

		// 2. 验证 Token
		claims, err := validateToken(tokenStr, jwtSecret)
		if err != nil {
			logCtx := logrus.WithError(err)
			logCtx.Warn("Auth middleware: Invalid token")

			// 根据 JWT 错误类型补充更具体的日志，对客户端只返回通用错误
			var validationError *jwt.ValidationError
			if errors.As(err, &validationError) {
				if validationError.Errors&jwt.ValidationErrorExpired != 0 {
					logCtx.Warn("Reason: Token is expired")
				}
				if validationError.Errors&jwt.ValidationErrorSignatureInvalid != 0 {
					logCtx.Warn("Reason: Token signature is invalid")
				}
			}
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		// 3. 从 Claims 中提取用户信息并设置到 Context
		// user_id 是 UUID 字符串
		userID, ok := claims["user_id"].(string)
		if !ok || userID == "" {
			logrus.Error("Auth middleware: 'user_id' claim missing or not a string")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		c.Set(ContextUserIDKey, userID)
		logrus.WithField("user_id", userID).Debug("Auth middleware: User authenticated via JWT")

		c.Next()
	}
}

// extractToken 从 Gin 上下文中提取 Bearer Token
func extractToken(c *gin.Context) (string, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", ErrMissingAuthHeader
	}
	// Authorization header 格式应为 "Bearer <token>"
	parts := strings.Split(authHeader, " ")
	// 使用 EqualFold 忽略 "Bearer" 的大小写
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", jwt.ErrTokenMalformed
	}
	return parts[1], nil
}

// validateToken 解析并验证 JWT token 字符串
func validateToken(tokenStr string, secret string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		// 验证签名方法是否为 HMAC (HS256)
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		// 解析或验证过程中发生错误 (格式错误、签名无效、过期等)
		return nil, fmt.Errorf("token validation failed: %w", err)
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token or claims type")
}
