package mocks

import (
	"github.com/NeuralTrust/EdgeRouter/pkg/app/routing"
	"github.com/NeuralTrust/EdgeRouter/pkg/app/upstream"
	"github.com/stretchr/testify/mock"
)

type MockFinder struct {
	mock.Mock
}

func (m *MockFinder) Find(kind routing.UpstreamKind) (*upstream.Endpoint, error) {
	args := m.Called(kind)
	ep, _ := args.Get(0).(*upstream.Endpoint) //nolint:errcheck
	return ep, args.Error(1)
}
