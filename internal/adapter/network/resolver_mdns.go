//go:build mdns

package network

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"

	"suitcase-link/internal/domain"
)

const (
	mdnsDomain      = "local."
	mdnsDefaultPath = "/weight"
)

// MDNSResolver finds the suitcase's HTTP endpoint via DNS-SD.
type MDNSResolver struct {
	service string
	timeout time.Duration
	logger  *slog.Logger
}

// NewMDNSResolver creates a resolver browsing for service (for example
// "_suitcase._tcp").
func NewMDNSResolver(service string, timeout time.Duration, logger *slog.Logger) *MDNSResolver {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &MDNSResolver{service: service, timeout: timeout, logger: logger}
}

// Resolve implements Resolver. The first answering instance wins.
func (r *MDNSResolver) Resolve(ctx context.Context) (string, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return "", fmt.Errorf("mdns resolver: %w", err)
	}

	browseCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	if err := resolver.Browse(browseCtx, r.service, mdnsDomain, entries); err != nil {
		return "", fmt.Errorf("mdns browse: %w", err)
	}

	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				return "", domain.NewDomainError("MDNSResolver.Resolve", domain.ErrNotFound, r.service)
			}
			if endpoint, ok := entryToEndpoint(entry); ok {
				r.logger.Info("mdns resolved endpoint", "instance", entry.Instance, "endpoint", endpoint)
				return endpoint, nil
			}
		case <-browseCtx.Done():
			return "", domain.NewDomainError("MDNSResolver.Resolve", domain.ErrNotFound, r.service)
		}
	}
}

// entryToEndpoint builds the poll URL from an announcement. A "path" TXT
// record overrides the default path.
func entryToEndpoint(entry *zeroconf.ServiceEntry) (string, bool) {
	var host string
	switch {
	case len(entry.AddrIPv4) > 0:
		host = entry.AddrIPv4[0].String()
	case len(entry.AddrIPv6) > 0:
		host = entry.AddrIPv6[0].String()
	default:
		return "", false
	}

	path := mdnsDefaultPath
	for _, t := range entry.Text {
		if k, v, ok := strings.Cut(t, "="); ok && k == "path" && strings.HasPrefix(v, "/") {
			path = v
		}
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(entry.Port)) + path, true
}

var _ Resolver = (*MDNSResolver)(nil)
