package config

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meterjob/internal/types"
)

type mapSource struct {
	values map[string]string
	err    error
}

func (m mapSource) GetAll(context.Context) (map[string]string, error) {
	return m.values, m.err
}

func TestLoadFeatureFlags(t *testing.T) {
	src := mapSource{values: map[string]string{
		"IsMeteredBillingEnabled":         "True",
		"EnableHourlyMeterSchedules":      "true",
		"EnableDailyMeterSchedules":       " TRUE ",
		"EnableWeeklyMeterSchedules":      "false",
		"EnableMonthlyMeterSchedules":     "1",
		"enableyearlymeterschedules":      "true",
		"EnablesMissingSchedulerEmail":    "yes",
		"EnablesSuccessfulSchedulerEmail": "true",
	}}

	flags, err := LoadFeatureFlags(context.Background(), src)
	require.NoError(t, err)

	assert.True(t, flags.MeteredBillingEnabled)
	assert.True(t, flags.ForFrequency(types.FrequencyHourly))
	assert.True(t, flags.ForFrequency(types.FrequencyDaily))
	assert.False(t, flags.ForFrequency(types.FrequencyWeekly))
	assert.False(t, flags.ForFrequency(types.FrequencyMonthly), "only true/false are recognised")
	assert.True(t, flags.ForFrequency(types.FrequencyYearly), "names match case-insensitively")
	assert.False(t, flags.ForFrequency(types.FrequencyOneTime), "absent keys default to false")
	assert.False(t, flags.MissingEmail)
	assert.True(t, flags.SuccessEmail)
	assert.False(t, flags.FailureEmail)
}

func TestLoadFeatureFlags_EmptyTableDisablesEverything(t *testing.T) {
	flags, err := LoadFeatureFlags(context.Background(), mapSource{})
	require.NoError(t, err)
	assert.False(t, flags.MeteredBillingEnabled)
	for _, f := range types.Frequencies {
		assert.False(t, flags.ForFrequency(f), f)
	}
}

func TestLoadFeatureFlags_SourceError(t *testing.T) {
	cause := errors.New("relation does not exist")
	_, err := LoadFeatureFlags(context.Background(), mapSource{err: cause})
	assert.ErrorIs(t, err, cause)
}

func TestBuildInfo_UserAgent(t *testing.T) {
	assert.Equal(t, "meter-trigger/dev", NewBuildInfo().UserAgent("meter-trigger"))
}
