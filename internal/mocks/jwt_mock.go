package mocks

import (
	"github.com/stretchr/testify/mock"
)

// MockTokenManager is a mock implementation of the TokenManagerInterface
type MockTokenManager struct {
	mock.Mock
}

func (m *MockTokenManager) Initialize() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockTokenManager) LoadToken() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockTokenManager) SaveToken(token string) error {
	args := m.Called(token)
	return args.Error(0)
}

func (m *MockTokenManager) GetToken() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockTokenManager) IsTokenValid() (bool, error) {
	args := m.Called()
	return args.Bool(0), args.Error(1)
}
