package mocks

import (
	"time"

	"github.com/stretchr/testify/mock"
)

// MockToken is a mock implementation of the mqtt.Token interface
type MockToken struct {
	mock.Mock
}

// Error returns the error associated with the token
func (m *MockToken) Error() error {
	args := m.Called()
	return args.Error(0)
}

// Wait waits for the token to complete
func (m *MockToken) Wait() bool {
	args := m.Called()
	return args.Bool(0)
}

// Done channel returns the done channel for the token
func (m *MockToken) Done() <-chan struct{} {
	args := m.Called()
	return args.Get(0).(<-chan struct{})
}

// Completed returns true if the token has completed
func (m *MockToken) Completed() bool {
	args := m.Called()
	return args.Bool(0)
}

// WaitTimeout waits for the token to complete or timeout
func (m *MockToken) WaitTimeout(timeout time.Duration) bool {
	args := m.Called(timeout)
	return args.Bool(0)
}

// NewSucceededToken builds a token preloaded to report success.
func NewSucceededToken() *MockToken {
	token := &MockToken{}
	token.On("Wait").Return(true)
	token.On("WaitTimeout", mock.Anything).Return(true)
	token.On("Done").Return(closedDoneChannel())
	token.On("Error").Return(nil)
	return token
}

// NewFailedToken builds a token preloaded to report err.
func NewFailedToken(err error) *MockToken {
	token := &MockToken{}
	token.On("Wait").Return(true)
	token.On("WaitTimeout", mock.Anything).Return(true)
	token.On("Done").Return(closedDoneChannel())
	token.On("Error").Return(err)
	return token
}

// NewPendingToken builds a token whose Done channel never fires, for
// exercising timeout paths.
func NewPendingToken() *MockToken {
	token := &MockToken{}
	token.On("Wait").Return(false)
	token.On("WaitTimeout", mock.Anything).Return(false)
	var done <-chan struct{} = make(chan struct{})
	token.On("Done").Return(done)
	token.On("Error").Return(nil)
	return token
}

func closedDoneChannel() <-chan struct{} {
	done := make(chan struct{})
	close(done)
	var recv <-chan struct{} = done
	return recv
}
