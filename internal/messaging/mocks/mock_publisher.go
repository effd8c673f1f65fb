package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, message any) bool {
	args := m.Called(ctx, topic, message)
	return args.Bool(0)
}

func (m *MockPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}
