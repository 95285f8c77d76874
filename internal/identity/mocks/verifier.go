// Package mocks 提供 identity 接口的 testify mock 实现，仅供测试使用。
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"collaborative-canvas/internal/identity"
)

// Verifier 是 identity.Verifier 的 mock 实现。
type Verifier struct {
	mock.Mock
}

func (m *Verifier) Verify(ctx context.Context, token string) (identity.Identity, error) {
	args := m.Called(ctx, token)
	ident, _ := args.Get(0).(identity.Identity)
	return ident, args.Error(1)
}
