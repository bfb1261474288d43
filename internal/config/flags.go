package config

import (
	"context"
	"fmt"
	"strings"

	"meterjob/internal/types"
)

// ConfigValueSource reads the name/value application settings table.
type ConfigValueSource interface {
	GetAll(ctx context.Context) (map[string]string, error)
}

// LoadFeatureFlags reads every application setting once and returns the typed
// snapshot used for a whole evaluation pass. Absent or unparsable values are
// false.
func LoadFeatureFlags(ctx context.Context, src ConfigValueSource) (types.FeatureFlags, error) {
	values, err := src.GetAll(ctx)
	if err != nil {
		return types.FeatureFlags{}, fmt.Errorf("loading application configuration: %w", err)
	}
	return ParseFeatureFlags(values), nil
}

// ParseFeatureFlags builds a snapshot from raw name/value pairs. Names are
// matched case-insensitively.
func ParseFeatureFlags(values map[string]string) types.FeatureFlags {
	folded := make(map[string]string, len(values))
	for k, v := range values {
		folded[strings.ToLower(strings.TrimSpace(k))] = v
	}
	get := func(name string) bool {
		return parseBool(folded[strings.ToLower(name)])
	}

	flags := types.FeatureFlags{
		MeteredBillingEnabled: get(types.FlagMeteredBillingEnabled),
		Frequencies:           make(map[types.Frequency]bool, len(types.Frequencies)),
		MissingEmail:          get(types.FlagMissingSchedulerEmail),
		SuccessEmail:          get(types.FlagSuccessfulSchedulerMail),
		FailureEmail:          get(types.FlagFailureSchedulerEmail),
	}
	for _, f := range types.Frequencies {
		flags.Frequencies[f] = get(types.FrequencyFlag(f))
	}
	return flags
}

// parseBool accepts "true"/"false" in any case with surrounding whitespace.
// Anything else, including "1" and "yes", is false.
func parseBool(v string) bool {
	return strings.EqualFold(strings.TrimSpace(v), "true")
}
