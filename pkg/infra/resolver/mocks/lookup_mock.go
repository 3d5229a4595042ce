package mocks

import (
	"context"

	"github.com/NeuralTrust/EdgeRouter/pkg/domain/upstream"
	"github.com/stretchr/testify/mock"
)

type MockLookup struct {
	mock.Mock
}

func (m *MockLookup) Resolve(ctx context.Context, target upstream.Target) (string, error) {
	args := m.Called(ctx, target)
	return args.String(0), args.Error(1)
}
