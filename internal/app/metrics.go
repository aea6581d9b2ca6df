package app

import (
	"fmt"

	"autoinspect/internal/config"
	"autoinspect/internal/metrics"
	"autoinspect/internal/metrics/datadog"
	"autoinspect/internal/metrics/prompush"
)

// newMetricsBackend creates the configured metrics backend. It returns nil
// for type "none", which leaves the no-op backend in place.
func newMetricsBackend(cfg config.MetricsConfig) (metrics.Backend, error) {
	switch cfg.Type {
	case "", "none":
		return nil, nil
	case "prometheus":
		b, err := prompush.NewBackend(cfg.Job, cfg.PushgatewayURL)
		if err != nil {
			return nil, err
		}
		return b, nil
	case "datadog":
		b, err := datadog.NewBackend(datadog.Config{
			Addr:       cfg.StatsdAddr,
			Namespace:  cfg.Namespace,
			GlobalTags: cfg.Tags,
		})
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown metrics type: %s", cfg.Type)
	}
}
