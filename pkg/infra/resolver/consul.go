package resolver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/NeuralTrust/EdgeRouter/pkg/domain/upstream"
	consulapi "github.com/hashicorp/consul/api"
)

var ErrNoHealthyInstances = errors.New("no healthy instances")

// HealthClient is the subset of the consul health endpoint used for lookups.
type HealthClient interface {
	Service(service, tag string, passingOnly bool, q *consulapi.QueryOptions) ([]*consulapi.ServiceEntry, *consulapi.QueryMeta, error)
}

type ConsulLookup struct {
	health HealthClient
	tag    string
}

func NewConsulLookup(addr, tag string) (*ConsulLookup, error) {
	cfg := consulapi.DefaultConfig()
	if addr != "" {
		cfg.Address = addr
	}
	client, err := consulapi.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create consul client: %w", err)
	}
	return NewConsulLookupWithClient(client.Health(), tag), nil
}

func NewConsulLookupWithClient(health HealthClient, tag string) *ConsulLookup {
	return &ConsulLookup{health: health, tag: tag}
}

// Resolve picks the first passing instance of the target's service. The
// service address wins over the node address; a zero service port falls back
// to the configured one.
func (l *ConsulLookup) Resolve(ctx context.Context, target upstream.Target) (string, error) {
	q := (&consulapi.QueryOptions{}).WithContext(ctx)
	entries, _, err := l.health.Service(target.ServiceName(), l.tag, true, q)
	if err != nil {
		return "", err
	}
	for _, entry := range entries {
		if entry == nil || entry.Service == nil {
			continue
		}
		host := entry.Service.Address
		if host == "" && entry.Node != nil {
			host = entry.Node.Address
		}
		if host == "" {
			continue
		}
		port := entry.Service.Port
		if port == 0 {
			port = target.Port
		}
		return net.JoinHostPort(host, strconv.Itoa(port)), nil
	}
	return "", fmt.Errorf("%s: %w", target.ServiceName(), ErrNoHealthyInstances)
}
