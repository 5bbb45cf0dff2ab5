package crm

import (
	"fmt"
	"math"
	"time"
)

// BusinessHours represents the daily office window (local time) used for
// response-time accounting. Saturdays and Sundays contribute nothing.
type BusinessHours struct {
	StartMinutes int
	EndMinutes   int
	loc          *time.Location
}

// ParseBusinessHours returns an office window from HH:MM strings.
func ParseBusinessHours(start, end string, loc *time.Location) (BusinessHours, error) {
	if loc == nil {
		loc = time.UTC
	}
	startMin, err := parseClock(start)
	if err != nil {
		return BusinessHours{}, fmt.Errorf("parse business hours start: %w", err)
	}
	endMin, err := parseClock(end)
	if err != nil {
		return BusinessHours{}, fmt.Errorf("parse business hours end: %w", err)
	}
	if endMin <= startMin {
		return BusinessHours{}, fmt.Errorf("business hours end %q not after start %q", end, start)
	}
	return BusinessHours{StartMinutes: startMin, EndMinutes: endMin, loc: loc}, nil
}

func defaultBusinessHours(loc *time.Location) BusinessHours {
	return BusinessHours{StartMinutes: 8 * 60, EndMinutes: 18 * 60, loc: loc}
}

func parseClock(v string) (int, error) {
	if v == "" {
		return 0, fmt.Errorf("empty clock")
	}
	t, err := time.Parse("15:04", v)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

// MinutesBetween sums the overlap of [start, end] with the office window of
// each weekday it spans, rounded to the nearest minute. A message answered
// over a weekend costs nothing; end at or before start yields 0.
func (b BusinessHours) MinutesBetween(start, end time.Time) int {
	if !end.After(start) {
		return 0
	}
	loc := b.loc
	if loc == nil {
		loc = time.UTC
	}

	startLocal := start.In(loc)
	endLocal := end.In(loc)
	day := time.Date(startLocal.Year(), startLocal.Month(), startLocal.Day(), 0, 0, 0, 0, loc)
	lastDay := time.Date(endLocal.Year(), endLocal.Month(), endLocal.Day(), 0, 0, 0, 0, loc)

	var total time.Duration
	for !day.After(lastDay) {
		weekday := day.Weekday()
		if weekday == time.Saturday || weekday == time.Sunday {
			day = day.AddDate(0, 0, 1)
			continue
		}
		windowStart := day.Add(time.Duration(b.StartMinutes) * time.Minute)
		windowEnd := day.Add(time.Duration(b.EndMinutes) * time.Minute)
		overlapStart := maxTime(start, windowStart)
		overlapEnd := minTime(end, windowEnd)
		if overlapEnd.After(overlapStart) {
			total += overlapEnd.Sub(overlapStart)
		}
		day = day.AddDate(0, 0, 1)
	}
	return int(math.Round(total.Minutes()))
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
