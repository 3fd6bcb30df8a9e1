package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/fieldvision/fieldvision/internal/directory"
)

// MockTargetDirectory is a mock implementation of the TargetDirectory interface
type MockTargetDirectory struct {
	mock.Mock
}

func (m *MockTargetDirectory) Lookup(ctx context.Context, targetID string) (*directory.TargetInfo, error) {
	args := m.Called(ctx, targetID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*directory.TargetInfo), args.Error(1)
}

func (m *MockTargetDirectory) Register(ctx context.Context, info *directory.TargetInfo) error {
	args := m.Called(ctx, info)
	return args.Error(0)
}

func (m *MockTargetDirectory) List(ctx context.Context) ([]*directory.TargetInfo, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*directory.TargetInfo), args.Error(1)
}
