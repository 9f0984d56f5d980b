package cmd

import (
	"fmt"
	"log/slog"

	"github.com/dukex/herald/pkg/featureflags"
)

// FlagsConfig selects and configures the feature flag service.
type FlagsConfig struct {
	Provider string
	Static   string
	RedisURL string
}

// NewFeatureFlags creates the flag service named by config.Provider. The
// returned close function releases its connections.
func NewFeatureFlags(logger *slog.Logger, config FlagsConfig) (featureflags.Service, func() error, error) {
	switch config.Provider {
	case "", "static":
		flags, err := featureflags.ParseStatic(config.Static)
		if err != nil {
			return nil, nil, err
		}

		return featureflags.NewStatic(flags), func() error { return nil }, nil
	case "redis":
		client, err := NewRedisClient(config.RedisURL)
		if err != nil {
			return nil, nil, err
		}

		return featureflags.NewRedis(client, logger), client.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported feature flags provider: %s", config.Provider)
	}
}
