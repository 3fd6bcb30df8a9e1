package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/fieldvision/fieldvision/internal/models"
)

// MockMediaController is a mock implementation of the MediaController interface
type MockMediaController struct {
	mock.Mock
}

func (m *MockMediaController) StartStream(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockMediaController) StopStream(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockBackofficeAPI is a mock implementation of the BackofficeAPI interface
type MockBackofficeAPI struct {
	mock.Mock
}

func (m *MockBackofficeAPI) FetchPending(ctx context.Context) ([]models.PendingCommand, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.PendingCommand), args.Error(1)
}

func (m *MockBackofficeAPI) Acknowledge(ctx context.Context, ids []string) (int, error) {
	args := m.Called(ctx, ids)
	return args.Int(0), args.Error(1)
}
