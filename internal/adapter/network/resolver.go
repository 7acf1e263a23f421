package network

import (
	"context"
	"fmt"
	"net/url"

	"suitcase-link/internal/domain"
)

// DefaultEndpoint is the suitcase's factory soft-AP address.
const DefaultEndpoint = "http://192.168.1.100/weight"

// Resolver yields the URL to poll.
type Resolver interface {
	Resolve(ctx context.Context) (string, error)
}

// StaticResolver always returns the configured endpoint.
type StaticResolver struct {
	endpoint string
}

// NewStaticResolver validates endpoint and returns a resolver for it. An
// empty endpoint selects DefaultEndpoint.
func NewStaticResolver(endpoint string) (*StaticResolver, error) {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if err := validateEndpoint(endpoint); err != nil {
		return nil, err
	}
	return &StaticResolver{endpoint: endpoint}, nil
}

// Resolve implements Resolver.
func (r *StaticResolver) Resolve(context.Context) (string, error) {
	return r.endpoint, nil
}

func validateEndpoint(endpoint string) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return domain.NewDomainError("network.Endpoint", domain.ErrInvalidInput, err.Error())
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return domain.NewDomainError("network.Endpoint", domain.ErrInvalidInput,
			fmt.Sprintf("unsupported scheme %q", u.Scheme))
	}
	if u.Host == "" {
		return domain.NewDomainError("network.Endpoint", domain.ErrInvalidInput, "missing host")
	}
	return nil
}
