package upstream

import (
	"fmt"

	"github.com/NeuralTrust/EdgeRouter/pkg/app/routing"
	domain "github.com/NeuralTrust/EdgeRouter/pkg/domain/errors"
	domainUpstream "github.com/NeuralTrust/EdgeRouter/pkg/domain/upstream"
)

// AddressSource returns the current host:port of a named upstream.
type AddressSource interface {
	Address(name string) (string, error)
}

// Endpoint is an upstream target together with the address it resolved to
// for this request.
type Endpoint struct {
	Target  domainUpstream.Target
	Address string
}

// URL joins the resolved address with path. websocket selects ws/wss.
func (e *Endpoint) URL(path string, websocket bool) string {
	scheme := e.Target.SchemeOrDefault()
	if websocket {
		if scheme == "https" {
			scheme = "wss"
		} else {
			scheme = "ws"
		}
	}
	return scheme + "://" + e.Address + path
}

type Finder interface {
	Find(kind routing.UpstreamKind) (*Endpoint, error)
}

type finder struct {
	targets   map[string]domainUpstream.Target
	addresses AddressSource
}

func NewFinder(targets []domainUpstream.Target, addresses AddressSource) Finder {
	byName := make(map[string]domainUpstream.Target, len(targets))
	for _, t := range targets {
		byName[t.Name] = t
	}
	return &finder{targets: byName, addresses: addresses}
}

func (f *finder) Find(kind routing.UpstreamKind) (*Endpoint, error) {
	name := string(kind)
	target, ok := f.targets[name]
	if !ok {
		return nil, &domain.EdgeError{
			Kind:     domain.KindBadGateway,
			Upstream: name,
			Err:      fmt.Errorf("%w: %s", routing.ErrUnknownUpstream, name),
		}
	}
	addr, err := f.addresses.Address(name)
	if err != nil {
		return nil, &domain.EdgeError{Kind: domain.KindBadGateway, Upstream: name, Err: err}
	}
	return &Endpoint{Target: target, Address: addr}, nil
}
