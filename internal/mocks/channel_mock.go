package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/fieldvision/fieldvision/internal/models"
)

// MockDeliveryChannel is a mock implementation of the DeliveryChannel interface
type MockDeliveryChannel struct {
	mock.Mock
}

func (m *MockDeliveryChannel) Name() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockDeliveryChannel) Send(ctx context.Context, targetID string, signal models.CommandSignal) error {
	args := m.Called(ctx, targetID, signal)
	return args.Error(0)
}
