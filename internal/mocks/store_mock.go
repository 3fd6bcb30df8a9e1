package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/fieldvision/fieldvision/internal/models"
)

// MockCommandStore is a mock implementation of the CommandStore interface
type MockCommandStore struct {
	mock.Mock
}

func (m *MockCommandStore) Create(ctx context.Context, cmd *models.PendingCommand) error {
	args := m.Called(ctx, cmd)
	return args.Error(0)
}

func (m *MockCommandStore) CreateAndSupersede(ctx context.Context, cmd *models.PendingCommand, supersedeKind models.CommandKind) ([]string, error) {
	args := m.Called(ctx, cmd, supersedeKind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockCommandStore) GetByID(ctx context.Context, id string) (*models.PendingCommand, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PendingCommand), args.Error(1)
}

func (m *MockCommandStore) FindActiveForTarget(ctx context.Context, targetID string) ([]*models.PendingCommand, error) {
	args := m.Called(ctx, targetID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.PendingCommand), args.Error(1)
}

func (m *MockCommandStore) MarkPublished(ctx context.Context, id string, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *MockCommandStore) MarkAcknowledged(ctx context.Context, targetID string, ids []string, at time.Time) (int, error) {
	args := m.Called(ctx, targetID, ids, at)
	return args.Int(0), args.Error(1)
}

func (m *MockCommandStore) MarkExpired(ctx context.Context, id string, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *MockCommandStore) IncrementAttempt(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockCommandStore) FindStale(ctx context.Context, issuedBefore time.Time, maxAttempts int) ([]*models.PendingCommand, error) {
	args := m.Called(ctx, issuedBefore, maxAttempts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.PendingCommand), args.Error(1)
}
