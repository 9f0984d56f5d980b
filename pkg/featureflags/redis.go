package featureflags

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix     = "herald:flags:"
	defaultLookupTimeout = 200 * time.Millisecond
)

// Redis reads flags from one hash per flag. Hash fields are "user:<id>",
// "env:<id>", "org:<id>" and "global", checked in that order.
type Redis struct {
	client  redis.UniversalClient
	prefix  string
	timeout time.Duration
	logger  *slog.Logger
}

func NewRedis(client redis.UniversalClient, logger *slog.Logger) *Redis {
	return &Redis{
		client:  client,
		prefix:  defaultKeyPrefix,
		timeout: defaultLookupTimeout,
		logger:  logger.With("module", "redis_feature_flags"),
	}
}

func (r *Redis) IsEnabled(ctx context.Context, key string, scope Scope, defaultValue bool) bool {
	fields := scopeFields(scope)

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	values, err := r.client.HMGet(ctx, r.prefix+key, fields...).Result()
	if err != nil {
		r.logger.WarnContext(ctx, "Feature flag lookup failed, using default",
			"flag", key,
			"default", defaultValue,
			"error", err)

		return defaultValue
	}

	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue
		}

		enabled, err := strconv.ParseBool(raw)
		if err != nil {
			r.logger.WarnContext(ctx, "Ignoring malformed feature flag value",
				"flag", key,
				"field", fields[i],
				"value", raw)

			continue
		}

		return enabled
	}

	return defaultValue
}

// Set stores a flag value for a scope field such as "org:<id>" or "global".
func (r *Redis) Set(ctx context.Context, key, field string, enabled bool) error {
	return r.client.HSet(ctx, r.prefix+key, field, strconv.FormatBool(enabled)).Err()
}

func scopeFields(scope Scope) []string {
	fields := make([]string, 0, 4)

	if scope.UserID != "" {
		fields = append(fields, "user:"+scope.UserID)
	}

	if scope.EnvironmentID != "" {
		fields = append(fields, "env:"+scope.EnvironmentID)
	}

	if scope.OrganizationID != "" {
		fields = append(fields, "org:"+scope.OrganizationID)
	}

	return append(fields, "global")
}
