package crm

import (
	"errors"
	"fmt"
	"time"
)

// Granularity selects how a reporting period is bucketed.
type Granularity string

const (
	GranularityDay    Granularity = "day"
	GranularityMonth  Granularity = "month"
	GranularityCustom Granularity = "custom"
)

// RangeParams carries the raw query parameters for a metrics request. Dates
// are civil dates (YYYY-MM-DD) in the engine's fixed zone.
type RangeParams struct {
	Granularity string
	Date        string
	StartDate   string
	EndDate     string
}

// ResolvedRange holds the absolute UTC boundaries of a reporting period and
// the immediately preceding comparison period. Starts are inclusive, ends
// exclusive.
type ResolvedRange struct {
	Granularity   Granularity
	CurrentStart  time.Time
	CurrentEnd    time.Time
	PreviousStart time.Time
	PreviousEnd   time.Time
}

// ErrCustomRangeBounds is returned when granularity custom is requested
// without both startDate and endDate.
var ErrCustomRangeBounds = errors.New("crm: custom granularity requires startDate and endDate")

// ResolveRange converts request parameters into period boundaries. The
// previous period always ends exactly where the current one begins; for month
// granularity the two may differ in length (calendar months), otherwise they
// have identical duration.
func (e *Engine) ResolveRange(p RangeParams) (ResolvedRange, error) {
	granularity := Granularity(p.Granularity)
	if p.Granularity == "" {
		granularity = GranularityDay
	}

	if granularity == GranularityCustom {
		if p.StartDate == "" || p.EndDate == "" {
			return ResolvedRange{}, ErrCustomRangeBounds
		}
		start, err := e.startOfCivilDay(p.StartDate)
		if err != nil {
			return ResolvedRange{}, err
		}
		endDay, err := e.startOfCivilDay(p.EndDate)
		if err != nil {
			return ResolvedRange{}, err
		}
		endExclusive := endDay.AddDate(0, 0, 1)
		if !endExclusive.After(start) {
			return ResolvedRange{}, fmt.Errorf("crm: custom range %s..%s is empty", p.StartDate, p.EndDate)
		}
		duration := endExclusive.Sub(start)
		return ResolvedRange{
			Granularity:   GranularityCustom,
			CurrentStart:  start,
			CurrentEnd:    endExclusive,
			PreviousStart: start.Add(-duration),
			PreviousEnd:   start,
		}, nil
	}

	referenceDate := p.Date
	if referenceDate == "" {
		referenceDate = e.now().In(e.loc).Format("2006-01-02")
	}
	reference, err := e.startOfCivilDay(referenceDate)
	if err != nil {
		return ResolvedRange{}, err
	}

	if granularity == GranularityMonth {
		local := reference.In(e.loc)
		currentStart := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, e.loc)
		return ResolvedRange{
			Granularity:   GranularityMonth,
			CurrentStart:  currentStart.UTC(),
			CurrentEnd:    currentStart.AddDate(0, 1, 0).UTC(),
			PreviousStart: currentStart.AddDate(0, -1, 0).UTC(),
			PreviousEnd:   currentStart.UTC(),
		}, nil
	}

	// Anything else resolves as a single civil day.
	currentEnd := reference.AddDate(0, 0, 1)
	duration := currentEnd.Sub(reference)
	return ResolvedRange{
		Granularity:   GranularityDay,
		CurrentStart:  reference,
		CurrentEnd:    currentEnd,
		PreviousStart: reference.Add(-duration),
		PreviousEnd:   reference,
	}, nil
}

// startOfCivilDay parses a YYYY-MM-DD civil date and returns local midnight
// as a UTC instant.
func (e *Engine) startOfCivilDay(date string) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", date, e.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("crm: invalid date %q: %w", date, err)
	}
	return t.UTC(), nil
}

// formatCivilDate renders an instant as its civil date in the engine's zone.
func (e *Engine) formatCivilDate(t time.Time) string {
	return t.In(e.loc).Format("2006-01-02")
}

var weekdayShortLabels = [7]string{"Dom", "Seg", "Ter", "Qua", "Qui", "Sex", "Sab"}

func (e *Engine) weekdayShort(t time.Time) string {
	return weekdayShortLabels[int(t.In(e.loc).Weekday())]
}
