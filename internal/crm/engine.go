package crm

import (
	"fmt"
	"time"

	"github.com/clinicops/crm-analytics/internal/config"
	obsmetrics "github.com/clinicops/crm-analytics/internal/observability/metrics"
)

// Defaults match the clinic's production calendar: Brasilia time (fixed
// UTC-3, no DST since 2019) and an 08:00-18:00 office window.
const (
	DefaultUTCOffsetMinutes       = -180
	DefaultTimezoneLabel          = "America/Sao_Paulo"
	DefaultResponseDiscardMinutes = 24 * 60
	DefaultTrendMinDays           = 7
	DefaultTrendMaxDays           = 14
)

var defaultAutomationMarkers = []string{"automation", "macro", "funnel", "pause"}

// Engine computes CRM operational metrics over in-memory row sets. It owns no
// state beyond configuration; every method is a pure function of its inputs.
type Engine struct {
	loc                    *time.Location
	tzLabel                string
	hours                  BusinessHours
	automationMarkers      []string
	responseDiscardMinutes int
	trendMinDays           int
	trendMaxDays           int
	now                    func() time.Time
	metrics                *obsmetrics.EngineMetrics
}

// Options configures an Engine. Zero values fall back to production defaults.
type Options struct {
	UTCOffsetMinutes *int
	TimezoneLabel    string
	BusinessHours    *BusinessHours
	// AutomationMarkers are substrings matched against message tool_data
	// provenance fields; a hit means the reply was machine-sent.
	AutomationMarkers      []string
	ResponseDiscardMinutes int
	TrendMinDays           int
	TrendMaxDays           int
	Now                    func() time.Time
	Metrics                *obsmetrics.EngineMetrics
}

// NewEngine builds an engine, filling unset options with defaults.
func NewEngine(opts Options) *Engine {
	offset := DefaultUTCOffsetMinutes
	if opts.UTCOffsetMinutes != nil {
		offset = *opts.UTCOffsetMinutes
	}
	loc := fixedZone(offset)

	e := &Engine{
		loc:                    loc,
		tzLabel:                opts.TimezoneLabel,
		automationMarkers:      opts.AutomationMarkers,
		responseDiscardMinutes: opts.ResponseDiscardMinutes,
		trendMinDays:           opts.TrendMinDays,
		trendMaxDays:           opts.TrendMaxDays,
		now:                    opts.Now,
		metrics:                opts.Metrics,
	}
	if opts.BusinessHours != nil {
		e.hours = *opts.BusinessHours
	} else {
		e.hours = defaultBusinessHours(loc)
	}
	if e.tzLabel == "" {
		e.tzLabel = DefaultTimezoneLabel
	}
	if len(e.automationMarkers) == 0 {
		e.automationMarkers = defaultAutomationMarkers
	}
	if e.responseDiscardMinutes <= 0 {
		e.responseDiscardMinutes = DefaultResponseDiscardMinutes
	}
	if e.trendMinDays <= 0 {
		e.trendMinDays = DefaultTrendMinDays
	}
	if e.trendMaxDays < e.trendMinDays {
		e.trendMaxDays = DefaultTrendMaxDays
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// FromConfig builds an engine from environment configuration.
func FromConfig(cfg *config.Config, m *obsmetrics.EngineMetrics) (*Engine, error) {
	loc := fixedZone(cfg.UTCOffsetMinutes)
	hours, err := ParseBusinessHours(cfg.BusinessHoursStart, cfg.BusinessHoursEnd, loc)
	if err != nil {
		return nil, fmt.Errorf("crm: %w", err)
	}
	return NewEngine(Options{
		UTCOffsetMinutes:       &cfg.UTCOffsetMinutes,
		TimezoneLabel:          cfg.TimezoneLabel,
		BusinessHours:          &hours,
		AutomationMarkers:      cfg.AutomationMarkers,
		ResponseDiscardMinutes: cfg.ResponseDiscardMinutes,
		TrendMinDays:           cfg.TrendMinDays,
		TrendMaxDays:           cfg.TrendMaxDays,
		Metrics:                m,
	}), nil
}

func fixedZone(offsetMinutes int) *time.Location {
	if offsetMinutes == 0 {
		return time.UTC
	}
	return time.FixedZone(fmt.Sprintf("UTC%+d", offsetMinutes/60), offsetMinutes*60)
}
