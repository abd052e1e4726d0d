package main

import (
	"fmt"
	"strings"

	"github.com/dmitrymomot/multitenant/pkg/tenant"
)

// buildStrategies turns the configured names into a chain, preserving order.
func buildStrategies(cfg chainConfig) ([]tenant.Strategy, error) {
	out := make([]tenant.Strategy, 0, len(cfg.Strategies))
	for _, name := range cfg.Strategies {
		switch strings.TrimSpace(strings.ToLower(name)) {
		case "":
			continue
		case tenant.StrategyStatic:
			s, err := tenant.NewStaticStrategy(cfg.Static)
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		case tenant.StrategyBasePath:
			out = append(out, tenant.NewBasePathStrategy())
		case tenant.StrategyHost:
			s, err := tenant.NewHostStrategy(cfg.HostTemplate)
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		case tenant.StrategyRoute:
			out = append(out, tenant.NewRouteStrategy(cfg.RouteParam))
		case tenant.StrategyHeader:
			out = append(out, tenant.NewHeaderStrategy(cfg.Header))
		case tenant.StrategyRemoteAuth:
			out = append(out, tenant.NewRemoteAuthStrategy())
		default:
			return nil, fmt.Errorf("unknown tenant strategy %q", name)
		}
	}
	return out, nil
}
