package resolver_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	domain "github.com/NeuralTrust/EdgeRouter/pkg/domain/errors"
	"github.com/NeuralTrust/EdgeRouter/pkg/domain/upstream"
	"github.com/NeuralTrust/EdgeRouter/pkg/infra/resolver"
	"github.com/NeuralTrust/EdgeRouter/pkg/infra/resolver/mocks"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	apiTarget      = upstream.Target{Name: "api", Host: "api.internal", Port: 4000}
	frontendTarget = upstream.Target{Name: "frontend", Host: "web.internal", Port: 3000}
)

func byName(name string) interface{} {
	return mock.MatchedBy(func(t upstream.Target) bool { return t.Name == name })
}

func TestCache_RefreshPublishesSnapshot(t *testing.T) {
	lookup := new(mocks.MockLookup)
	lookup.On("Resolve", mock.Anything, byName("api")).Return("10.0.0.1:4000", nil).Once()
	lookup.On("Resolve", mock.Anything, byName("frontend")).Return("10.0.0.2:3000", nil).Once()

	cache := resolver.NewCache(lookup, []upstream.Target{apiTarget, frontendTarget}, logrus.New())

	_, err := cache.Address("api")
	assert.ErrorIs(t, err, domain.ErrUnresolved)

	require.NoError(t, cache.Refresh(context.Background()))

	addr, err := cache.Address("api")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1:4000", addr)

	addr, err = cache.Address("frontend")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.2:3000", addr)
	assert.Equal(t, 2, cache.Snapshot().Len())
	assert.False(t, cache.Snapshot().ResolvedAt.IsZero())

	lookup.AssertExpectations(t)
}

func TestCache_FailedLookupKeepsPreviousAddress(t *testing.T) {
	lookup := new(mocks.MockLookup)
	lookup.On("Resolve", mock.Anything, byName("api")).Return("10.0.0.1:4000", nil).Once()
	lookup.On("Resolve", mock.Anything, byName("api")).Return("", errors.New("no such host")).Once()

	cache := resolver.NewCache(lookup, []upstream.Target{apiTarget}, logrus.New())
	require.NoError(t, cache.Refresh(context.Background()))

	err := cache.Refresh(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such host")

	addr, err := cache.Address("api")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1:4000", addr)
}

func TestCache_FailedFirstLookupStaysUnresolved(t *testing.T) {
	lookup := new(mocks.MockLookup)
	lookup.On("Resolve", mock.Anything, byName("api")).Return("", errors.New("no such host"))

	cache := resolver.NewCache(lookup, []upstream.Target{apiTarget}, logrus.New())
	assert.Error(t, cache.Refresh(context.Background()))

	_, err := cache.Address("api")
	assert.ErrorIs(t, err, domain.ErrUnresolved)
}

func TestCache_SwapsAddressOnReplacement(t *testing.T) {
	lookup := new(mocks.MockLookup)
	lookup.On("Resolve", mock.Anything, byName("api")).Return("10.0.0.1:4000", nil).Once()
	lookup.On("Resolve", mock.Anything, byName("api")).Return("10.0.0.9:4000", nil).Once()

	cache := resolver.NewCache(lookup, []upstream.Target{apiTarget}, logrus.New())
	require.NoError(t, cache.Refresh(context.Background()))
	before := cache.Snapshot()

	require.NoError(t, cache.Refresh(context.Background()))

	addr, _ := before.Address("api")
	assert.Equal(t, "10.0.0.1:4000", addr, "old snapshot is never mutated")
	addr, err := cache.Address("api")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.9:4000", addr)
}

func TestCache_ConcurrentReadersDuringRefresh(t *testing.T) {
	lookup := new(mocks.MockLookup)
	lookup.On("Resolve", mock.Anything, byName("api")).Return("10.0.0.1:4000", nil)

	cache := resolver.NewCache(lookup, []upstream.Target{apiTarget}, logrus.New())
	require.NoError(t, cache.Refresh(context.Background()))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = cache.Refresh(context.Background())
		}()
		go func() {
			defer wg.Done()
			addr, err := cache.Address("api")
			assert.NoError(t, err)
			assert.Equal(t, "10.0.0.1:4000", addr)
		}()
	}
	wg.Wait()
}

func TestCache_RunStopsOnCancel(t *testing.T) {
	lookup := new(mocks.MockLookup)
	lookup.On("Resolve", mock.Anything, byName("api")).Return("10.0.0.1:4000", nil)

	cache := resolver.NewCache(lookup, []upstream.Target{apiTarget}, logrus.New(),
		resolver.WithRefreshInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		cache.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		_, err := cache.Address("api")
		return err == nil
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("resolver loop did not stop")
	}
}
