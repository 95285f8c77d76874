// Package jwtidentity 提供基于 JWT (HS256) 的 identity.Verifier 实现。
package jwtidentity

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v4"

	"collaborative-canvas/internal/identity"
)

// JWTVerifier 校验本服务签发的 HS256 访问令牌。
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier 创建 JWTVerifier 实例。
func NewJWTVerifier(secret string) (*JWTVerifier, error) {
	if secret == "" {
		return nil, errors.New("jwt secret cannot be empty")
	}
	return &JWTVerifier{secret: []byte(secret)}, nil
}

// Verify 实现 identity.Verifier。
// ctx 只为接口契约保留，HS256 校验是纯内存操作。
func (v *JWTVerifier) Verify(ctx context.Context, tokenStr string) (identity.Identity, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		// 验证签名方法是否为 HMAC (HS256)
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		// 格式错误、签名无效、过期等都会走到这里
		return identity.Identity{}, fmt.Errorf("token validation failed: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return identity.Identity{}, errors.New("invalid token or claims type")
	}

	userID, _ := claims["user_id"].(string)
	if userID == "" {
		return identity.Identity{}, errors.New("token missing user_id claim")
	}
	email, _ := claims["email"].(string)

	return identity.Identity{UserID: userID, Email: email}, nil
}
