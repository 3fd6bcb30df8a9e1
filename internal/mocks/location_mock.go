package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/fieldvision/fieldvision/pkg/location"
)

// MockLocationProvider is a mock implementation of the location Provider interface
type MockLocationProvider struct {
	mock.Mock
}

func (m *MockLocationProvider) GetLocation(ctx context.Context) (location.Location, error) {
	args := m.Called(ctx)
	return args.Get(0).(location.Location), args.Error(1)
}
