package crm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicops/crm-analytics/internal/config"
)

func TestNewEngineDefaults(t *testing.T) {
	e := NewEngine(Options{})

	assert.Equal(t, DefaultTimezoneLabel, e.tzLabel)
	assert.Equal(t, defaultAutomationMarkers, e.automationMarkers)
	assert.Equal(t, DefaultResponseDiscardMinutes, e.responseDiscardMinutes)
	assert.Equal(t, DefaultTrendMinDays, e.trendMinDays)
	assert.Equal(t, DefaultTrendMaxDays, e.trendMaxDays)
	assert.NotNil(t, e.now)
	assert.Equal(t, 8*60, e.hours.StartMinutes)
	assert.Equal(t, 18*60, e.hours.EndMinutes)
}

func TestFromConfig(t *testing.T) {
	cfg := config.Load()
	e, err := FromConfig(cfg, nil)
	require.NoError(t, err)

	rng, err := e.ResolveRange(RangeParams{Granularity: "day", Date: "2026-02-13"})
	require.NoError(t, err)
	assert.Equal(t, GranularityDay, rng.Granularity)
}

func TestFromConfigRejectsBadBusinessHours(t *testing.T) {
	cfg := config.Load()
	cfg.BusinessHoursStart = "morning"
	_, err := FromConfig(cfg, nil)
	assert.Error(t, err)
}

func TestEngineCustomAutomationMarkers(t *testing.T) {
	e := NewEngine(Options{AutomationMarkers: []string{"bot"}})
	assert.True(t, e.hasAutomationMarker(map[string]any{"source": "chatbot_v2"}))
	assert.False(t, e.hasAutomationMarker(map[string]any{"source": "macro_followup"}))
}
