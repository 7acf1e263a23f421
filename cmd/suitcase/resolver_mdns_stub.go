//go:build !mdns

package main

import (
	"fmt"
	"log/slog"

	"suitcase-link/internal/adapter/network"
	"suitcase-link/internal/infra/config"
)

func buildDiscoveryResolver(_ config.DiscoveryConfig, _ *slog.Logger) (network.Resolver, error) {
	return nil, fmt.Errorf("network.discovery requires build with -tags mdns")
}
