package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/fieldvision/fieldvision/internal/auth"
	"github.com/fieldvision/fieldvision/internal/models"
)

// MockDispatcher is a mock implementation of the CommandDispatcher interface
type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) Dispatch(ctx context.Context, cmd *models.PendingCommand) ([]models.DeliveryOutcome, error) {
	args := m.Called(ctx, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.DeliveryOutcome), args.Error(1)
}

// MockRedispatcher is a mock implementation of the Redispatcher interface
type MockRedispatcher struct {
	mock.Mock
}

func (m *MockRedispatcher) RedispatchTarget(ctx context.Context, targetID string) (int, error) {
	args := m.Called(ctx, targetID)
	return args.Int(0), args.Error(1)
}

// MockTokenVerifier is a mock implementation of the TokenVerifier interface
type MockTokenVerifier struct {
	mock.Mock
}

func (m *MockTokenVerifier) Verify(raw string) (*auth.Claims, error) {
	args := m.Called(raw)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.Claims), args.Error(1)
}
