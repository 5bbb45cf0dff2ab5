package crm

import (
	"fmt"
	"math"
	"time"
)

// Trend compares a KPI against the previous period. Value is the absolute
// delta; IsPositive encodes whether the move is an improvement for that
// metric's polarity.
type Trend struct {
	Value      float64 `json:"value"`
	IsPositive bool    `json:"isPositive"`
}

// FunnelItem is one stage of the conversion funnel with its display color.
type FunnelItem struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
	Fill  string `json:"fill"`
}

// TrendPoint is one day of the sliding trend window.
type TrendPoint struct {
	Name             string  `json:"name"`
	Date             string  `json:"date"`
	QueueTime        int     `json:"queueTime"`
	ServiceTime      int     `json:"serviceTime"`
	ResponseTime     int     `json:"responseTime"`
	ConversionRate   float64 `json:"conversionRate"`
	ReturnRate       float64 `json:"returnRate"`
	PendingResponses int     `json:"pendingResponses"`
}

// CoverageStats tells the consumer how many rows actually backed each
// average, so a dashboard can judge sample reliability.
type CoverageStats struct {
	QueueEligible            int `json:"queueEligible"`
	QueueInvalid             int `json:"queueInvalid"`
	ServiceEligible          int `json:"serviceEligible"`
	ServiceInvalid           int `json:"serviceInvalid"`
	ResponseCycles           int `json:"responseCycles"`
	ResponseDiscardedOver24h int `json:"responseDiscardedOver24h"`
}

// ResponseDistribution summarizes the current period's response-time sample.
type ResponseDistribution struct {
	P50   int `json:"p50"`
	P90   int `json:"p90"`
	Mean  int `json:"mean"`
	Count int `json:"count"`
}

// PeriodInfo describes the resolved reporting window in civil dates.
type PeriodInfo struct {
	Granularity   Granularity `json:"granularity"`
	Start         string      `json:"start"`
	End           string      `json:"end"`
	PreviousStart string      `json:"previousStart"`
	PreviousEnd   string      `json:"previousEnd"`
	Timezone      string      `json:"timezone"`
}

// MetricsPayload is the dashboard contract. Field names are consumed as-is
// by the UI and must not change.
type MetricsPayload struct {
	AverageQueueTime            int                  `json:"averageQueueTime"`
	AverageServiceTime          int                  `json:"averageServiceTime"`
	AverageResponseTime         int                  `json:"averageResponseTime"`
	ConversionRate              float64              `json:"conversionRate"`
	ReturnRate                  float64              `json:"returnRate"`
	LeadToConsultationRate      float64              `json:"leadToConsultationRate"`
	TotalChats                  int                  `json:"totalChats"`
	TotalAppointments           int                  `json:"totalAppointments"`
	TotalFinished               int                  `json:"totalFinished"`
	TotalWaiting                int                  `json:"totalWaiting"`
	TotalInService              int                  `json:"totalInService"`
	PendingResponseCount        int                  `json:"pendingResponseCount"`
	PendingResponseOver24hCount int                  `json:"pendingResponseOver24hCount"`
	QueueTimeTrend              Trend                `json:"queueTimeTrend"`
	ServiceTimeTrend            Trend                `json:"serviceTimeTrend"`
	ResponseTimeTrend           Trend                `json:"responseTimeTrend"`
	ConversionTrend             Trend                `json:"conversionTrend"`
	ReturnTrend                 Trend                `json:"returnTrend"`
	PendingResponseTrend        Trend                `json:"pendingResponseTrend"`
	FunnelData                  []FunnelItem         `json:"funnelData"`
	TrendData                   []TrendPoint         `json:"trendData"`
	Coverage                    CoverageStats        `json:"coverage"`
	ResponseDistribution        ResponseDistribution `json:"responseDistribution"`
	Period                      PeriodInfo           `json:"period"`
}

// BuildMetricsPayload aggregates the current period, the previous period and
// a sliding day-by-day window, then packages deltas, percentiles and coverage
// into the dashboard payload. It either completes fully or returns an error;
// there are no partial payloads.
func (e *Engine) BuildMetricsPayload(rng ResolvedRange, ds *Dataset) (*MetricsPayload, error) {
	if !rng.CurrentEnd.After(rng.CurrentStart) || !rng.PreviousEnd.After(rng.PreviousStart) {
		return nil, fmt.Errorf("crm: resolved range has non-positive duration")
	}
	started := time.Now()

	current := e.aggregate(rng.CurrentStart, rng.CurrentEnd, ds)
	previous := e.aggregate(rng.PreviousStart, rng.PreviousEnd, ds)

	periodDays := int(math.Ceil(rng.CurrentEnd.Sub(rng.CurrentStart).Hours() / 24))
	totalDays := periodDays
	if totalDays < e.trendMinDays {
		totalDays = e.trendMinDays
	}
	if totalDays > e.trendMaxDays {
		totalDays = e.trendMaxDays
	}

	trendData := make([]TrendPoint, 0, totalDays)
	for i := totalDays - 1; i >= 0; i-- {
		dayStart := rng.CurrentEnd.Add(-time.Duration(i+1) * 24 * time.Hour)
		dayEnd := dayStart.Add(24 * time.Hour)
		day := e.aggregate(dayStart, dayEnd, ds)
		trendData = append(trendData, TrendPoint{
			Name:             e.weekdayShort(dayStart),
			Date:             e.formatCivilDate(dayStart),
			QueueTime:        day.averageQueueTime,
			ServiceTime:      day.averageServiceTime,
			ResponseTime:     day.averageResponseTime,
			ConversionRate:   day.conversionRate,
			ReturnRate:       day.returnRate,
			PendingResponses: day.pendingResponseCount,
		})
	}

	payload := &MetricsPayload{
		AverageQueueTime:            current.averageQueueTime,
		AverageServiceTime:          current.averageServiceTime,
		AverageResponseTime:         current.averageResponseTime,
		ConversionRate:              current.conversionRate,
		ReturnRate:                  current.returnRate,
		LeadToConsultationRate:      current.conversionRate,
		TotalChats:                  current.totalChats,
		TotalAppointments:           current.totalAppointments,
		TotalFinished:               current.totalFinished,
		TotalWaiting:                current.totalWaiting,
		TotalInService:              current.totalInService,
		PendingResponseCount:        current.pendingResponseCount,
		PendingResponseOver24hCount: current.pendingResponseOver24hCount,
		QueueTimeTrend:              computeTrend(float64(current.averageQueueTime), float64(previous.averageQueueTime), true),
		ServiceTimeTrend:            computeTrend(float64(current.averageServiceTime), float64(previous.averageServiceTime), true),
		ResponseTimeTrend:           computeTrend(float64(current.averageResponseTime), float64(previous.averageResponseTime), true),
		ConversionTrend:             computeTrend(current.conversionRate, previous.conversionRate, false),
		ReturnTrend:                 computeTrend(current.returnRate, previous.returnRate, false),
		PendingResponseTrend:        computeTrend(float64(current.pendingResponseCount), float64(previous.pendingResponseCount), true),
		FunnelData:                  current.funnel,
		TrendData:                   trendData,
		Coverage: CoverageStats{
			QueueEligible:            len(current.queueTimes),
			QueueInvalid:             nonNegative(current.totalFinished - len(current.queueTimes)),
			ServiceEligible:          len(current.serviceTimes),
			ServiceInvalid:           nonNegative(current.totalFinished - len(current.serviceTimes)),
			ResponseCycles:           len(current.responseTimes),
			ResponseDiscardedOver24h: current.responseDiscardedOver24h,
		},
		ResponseDistribution: ResponseDistribution{
			P50:   percentile(current.responseTimes, 50),
			P90:   percentile(current.responseTimes, 90),
			Mean:  average(current.responseTimes),
			Count: len(current.responseTimes),
		},
		Period: PeriodInfo{
			Granularity:   rng.Granularity,
			Start:         e.formatCivilDate(rng.CurrentStart),
			End:           e.formatCivilDate(rng.CurrentEnd.Add(-time.Millisecond)),
			PreviousStart: e.formatCivilDate(rng.PreviousStart),
			PreviousEnd:   e.formatCivilDate(rng.PreviousEnd.Add(-time.Millisecond)),
			Timezone:      e.tzLabel,
		},
	}

	if e.metrics != nil {
		e.metrics.ObserveBuild(string(rng.Granularity), time.Since(started).Seconds())
		e.metrics.AddDiscardedSamples("queue_invalid", payload.Coverage.QueueInvalid)
		e.metrics.AddDiscardedSamples("service_invalid", payload.Coverage.ServiceInvalid)
		e.metrics.AddDiscardedSamples("response_over_24h", payload.Coverage.ResponseDiscardedOver24h)
	}
	return payload, nil
}

// computeTrend reports the absolute delta between periods, flagged positive
// when the metric moved in the right direction for its polarity.
func computeTrend(current, previous float64, lowerIsBetter bool) Trend {
	delta := current - previous
	positive := delta > 0
	if lowerIsBetter {
		positive = delta < 0
	}
	return Trend{
		Value:      math.Abs(round1(delta)),
		IsPositive: positive,
	}
}

func nonNegative(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
