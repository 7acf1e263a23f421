//go:build mdns

package main

import (
	"log/slog"

	"suitcase-link/internal/adapter/network"
	"suitcase-link/internal/infra/config"
)

func buildDiscoveryResolver(cfg config.DiscoveryConfig, logger *slog.Logger) (network.Resolver, error) {
	return network.NewMDNSResolver(cfg.Service, cfg.Timeout, logger), nil
}
