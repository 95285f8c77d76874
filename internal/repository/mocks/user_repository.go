// Package mocks 提供 repository 接口的 testify mock 实现，仅供测试使用。
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"collaborative-canvas/internal/domain"
)

// UserRepository 是 repository.UserRepository 的 mock 实现。
type UserRepository struct {
	mock.Mock
}

func (m *UserRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	args := m.Called(ctx, username)
	var user *domain.User
	if v := args.Get(0); v != nil {
		user = v.(*domain.User)
	}
	return user, args.Error(1)
}

func (m *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	var user *domain.User
	if v := args.Get(0); v != nil {
		user = v.(*domain.User)
	}
	return user, args.Error(1)
}

func (m *UserRepository) Save(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}
