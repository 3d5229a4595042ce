package websocket_test

import (
	"testing"

	"github.com/NeuralTrust/EdgeRouter/pkg/infra/websocket"
	"github.com/stretchr/testify/assert"
)

func TestSemaphore(t *testing.T) {
	s := websocket.NewSemaphore(2)
	assert.True(t, s.Acquire())
	assert.True(t, s.Acquire())
	assert.False(t, s.Acquire())
	assert.Equal(t, 2, s.InUse())

	s.Release()
	assert.True(t, s.Acquire())

	s.Release()
	s.Release()
	s.Release()
	assert.Equal(t, 0, s.InUse())
}

func TestSemaphore_Unlimited(t *testing.T) {
	s := websocket.NewSemaphore(0)
	for i := 0; i < 100; i++ {
		assert.True(t, s.Acquire())
	}
	s.Release()
	assert.Equal(t, 0, s.InUse())
}
