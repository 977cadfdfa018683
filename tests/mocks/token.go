package mocks

import (
	"time"

	"github.com/stretchr/testify/mock"
)

// MockToken stands in for the paho mqtt.Token handed back by publish and
// subscribe calls.
type MockToken struct {
	mock.Mock
}

// Error reports the outcome recorded on the token.
func (m *MockToken) Error() error {
	args := m.Called()
	return args.Error(0)
}

// Wait blocks until the tracked operation finishes.
func (m *MockToken) Wait() bool {
	args := m.Called()
	return args.Bool(0)
}

// Done exposes the completion channel.
func (m *MockToken) Done() <-chan struct{} {
	args := m.Called()
	return args.Get(0).(<-chan struct{})
}

// Completed reports whether the tracked operation already finished.
func (m *MockToken) Completed() bool {
	args := m.Called()
	return args.Bool(0)
}

// WaitTimeout blocks until the tracked operation finishes or the timeout
// elapses.
func (m *MockToken) WaitTimeout(timeout time.Duration) bool {
	args := m.Called(timeout)
	return args.Bool(0)
}
