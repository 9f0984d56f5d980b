// Package featureflags evaluates boolean feature flags scoped to an
// organization, environment and user.
package featureflags

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// DryRunInvalidRecipients lets triggers with invalid recipients through unmodified.
const DryRunInvalidRecipients = "is-dry-run-invalid-recipients-enabled"

// Scope is the context a flag is evaluated in. Narrower scopes win.
type Scope struct {
	OrganizationID string
	EnvironmentID  string
	UserID         string
}

// Service evaluates flags. Implementations must fall back to defaultValue
// instead of failing or blocking.
type Service interface {
	IsEnabled(ctx context.Context, key string, scope Scope, defaultValue bool) bool
}

// Static serves flags from a fixed set of values, regardless of scope.
type Static struct {
	flags map[string]bool
}

func NewStatic(flags map[string]bool) *Static {
	copied := make(map[string]bool, len(flags))
	for key, value := range flags {
		copied[key] = value
	}

	return &Static{flags: copied}
}

func (s *Static) IsEnabled(_ context.Context, key string, _ Scope, defaultValue bool) bool {
	if value, ok := s.flags[key]; ok {
		return value
	}

	return defaultValue
}

// ParseStatic parses a comma separated list of key=bool pairs.
func ParseStatic(definition string) (map[string]bool, error) {
	flags := make(map[string]bool)

	for _, pair := range strings.Split(definition, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		key, raw, found := strings.Cut(pair, "=")
		if !found || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid feature flag %q: expected key=bool", pair)
		}

		value, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid feature flag %q: %w", pair, err)
		}

		flags[strings.TrimSpace(key)] = value
	}

	return flags, nil
}
