package resolver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	domain "github.com/NeuralTrust/EdgeRouter/pkg/domain/errors"
	"github.com/NeuralTrust/EdgeRouter/pkg/domain/upstream"
	"github.com/NeuralTrust/EdgeRouter/pkg/infra/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultRefreshInterval = 30 * time.Second
	DefaultLookupTimeout   = 5 * time.Second
	maxParallelLookups     = 8
)

type Lookup interface {
	// Resolve returns the host:port currently serving target.
	Resolve(ctx context.Context, target upstream.Target) (string, error)
}

// Snapshot is an immutable view of every resolved upstream address.
type Snapshot struct {
	addresses  map[string]string
	ResolvedAt time.Time
}

func (s *Snapshot) Address(name string) (string, bool) {
	if s == nil {
		return "", false
	}
	addr, ok := s.addresses[name]
	return addr, ok
}

func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.addresses)
}

type Option func(*Cache)

func WithRefreshInterval(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.interval = d
		}
	}
}

func WithLookupTimeout(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// Cache holds the current Snapshot. Readers never lock: they load the pointer
// and see either the previous or the newly resolved snapshot.
type Cache struct {
	lookup   Lookup
	targets  []upstream.Target
	interval time.Duration
	timeout  time.Duration
	logger   *logrus.Logger
	current  atomic.Pointer[Snapshot]
}

func NewCache(lookup Lookup, targets []upstream.Target, logger *logrus.Logger, opts ...Option) *Cache {
	c := &Cache{
		lookup:   lookup,
		targets:  targets,
		interval: DefaultRefreshInterval,
		timeout:  DefaultLookupTimeout,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.current.Store(&Snapshot{addresses: map[string]string{}})
	return c
}

func (c *Cache) Snapshot() *Snapshot {
	return c.current.Load()
}

// Address returns the last resolved address of the named upstream.
func (c *Cache) Address(name string) (string, error) {
	addr, ok := c.current.Load().Address(name)
	if !ok {
		return "", fmt.Errorf("%s: %w", name, domain.ErrUnresolved)
	}
	return addr, nil
}

// Refresh resolves every target and publishes a new snapshot. A target whose
// lookup fails keeps its previous address.
func (c *Cache) Refresh(ctx context.Context) error {
	prev := c.current.Load()
	next := make(map[string]string, len(c.targets))

	var (
		mu   sync.Mutex
		errs []error
		g    errgroup.Group
	)
	g.SetLimit(maxParallelLookups)

	for _, target := range c.targets {
		target := target
		g.Go(func() error {
			lookupCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()

			addr, err := c.lookup.Resolve(lookupCtx, target)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				prometheus.ResolverRefreshTotal.WithLabelValues(target.Name, "error").Inc()
				errs = append(errs, fmt.Errorf("resolve %s (%s): %w", target.Name, target.Host, err))
				if old, ok := prev.Address(target.Name); ok {
					next[target.Name] = old
				}
				return nil
			}
			prometheus.ResolverRefreshTotal.WithLabelValues(target.Name, "ok").Inc()
			next[target.Name] = addr
			return nil
		})
	}
	_ = g.Wait()

	c.current.Store(&Snapshot{addresses: next, ResolvedAt: time.Now()})

	for name, addr := range next {
		if old, ok := prev.Address(name); !ok || old != addr {
			c.logger.WithFields(logrus.Fields{
				"upstream": name,
				"address":  addr,
				"previous": old,
			}).Info("upstream address updated")
		}
	}

	return errors.Join(errs...)
}

// Run refreshes the cache on the configured interval until ctx is done.
func (c *Cache) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Debug("upstream resolver stopped")
			return
		case <-ticker.C:
			if err := c.Refresh(ctx); err != nil {
				c.logger.WithError(err).Warn("upstream refresh completed with errors")
			}
		}
	}
}
