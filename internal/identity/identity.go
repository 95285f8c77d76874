// Package identity 定义了连接认证所依赖的最小身份抽象。
// 网关本身不关心令牌格式，只依赖 Verifier 给出的校验结果。
package identity

import "context"

// Identity 是一次令牌校验成功后得到的用户身份。
type Identity struct {
	UserID string // 用户唯一标识符，非空
	Email  string // 用户邮箱，可能为空
}

// Verifier 校验访问令牌并返回其中携带的身份。
// 令牌无效、过期或缺少必要声明时返回非 nil 错误。
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}
