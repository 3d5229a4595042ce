package resolver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/NeuralTrust/EdgeRouter/pkg/domain/upstream"
)

var ErrNoAddresses = errors.New("no addresses returned")

type DNSLookup struct {
	resolver *net.Resolver
}

func NewDNSLookup(r *net.Resolver) *DNSLookup {
	if r == nil {
		r = net.DefaultResolver
	}
	return &DNSLookup{resolver: r}
}

func (d *DNSLookup) Resolve(ctx context.Context, target upstream.Target) (string, error) {
	port := strconv.Itoa(target.Port)
	if ip := net.ParseIP(target.Host); ip != nil {
		return net.JoinHostPort(ip.String(), port), nil
	}

	addrs, err := d.resolver.LookupHost(ctx, target.Host)
	if err != nil {
		return "", err
	}
	if len(addrs) == 0 {
		return "", fmt.Errorf("%s: %w", target.Host, ErrNoAddresses)
	}
	return net.JoinHostPort(addrs[0], port), nil
}
