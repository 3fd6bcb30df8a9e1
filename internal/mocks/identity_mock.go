package mocks

import (
	"github.com/stretchr/testify/mock"

	"github.com/fieldvision/fieldvision/pkg/identity"
)

// MockDeviceInfo is a mock implementation of the DeviceInfoInterface
type MockDeviceInfo struct {
	mock.Mock
}

func (m *MockDeviceInfo) LoadDeviceInfo() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockDeviceInfo) GetTargetID() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockDeviceInfo) GetIdentity() *identity.Identity {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*identity.Identity)
}
