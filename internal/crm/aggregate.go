package crm

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

type aggregateResult struct {
	averageQueueTime            int
	averageServiceTime          int
	averageResponseTime         int
	conversionRate              float64
	returnRate                  float64
	totalChats                  int
	totalAppointments           int
	totalFinished               int
	totalWaiting                int
	totalInService              int
	pendingResponseCount        int
	pendingResponseOver24hCount int
	queueTimes                  []int
	serviceTimes                []int
	responseTimes               []int
	responseDiscardedOver24h    int
	funnel                      []FunnelItem
}

// aggregate computes every point-in-time KPI for one period. Malformed rows
// are excluded from the relevant sample, never defaulted to zero.
func (e *Engine) aggregate(periodStart, periodEnd time.Time, ds *Dataset) aggregateResult {
	initiatedChatIDs := make(map[int64]struct{})
	totalChats := 0
	for _, chat := range ds.Chats {
		if within(chat.CreatedAt, periodStart, periodEnd) {
			initiatedChatIDs[chat.ID] = struct{}{}
			totalChats++
		}
	}

	var appointmentsInRange []Appointment
	for _, apt := range ds.Appointments {
		if within(apt.ReferenceTime(), periodStart, periodEnd) {
			appointmentsInRange = append(appointmentsInRange, apt)
		}
	}

	var originated []Appointment
	for _, apt := range appointmentsInRange {
		if apt.ChatID == nil {
			continue
		}
		if _, ok := initiatedChatIDs[*apt.ChatID]; ok {
			originated = append(originated, apt)
		}
	}

	var queueTimes []int
	for _, apt := range appointmentsInRange {
		if !within(apt.FinishedAt, periodStart, periodEnd) {
			continue
		}
		if apt.QueueEnteredAt == nil || apt.InServiceAt == nil || !apt.InServiceAt.After(*apt.QueueEnteredAt) {
			continue
		}
		queueTimes = append(queueTimes, roundMinutes(apt.InServiceAt.Sub(*apt.QueueEnteredAt)))
	}

	var serviceTimes []int
	for _, record := range ds.MedicalRecords {
		if record.AppointmentID == nil || *record.AppointmentID == 0 {
			continue
		}
		if !within(record.FinishedAt, periodStart, periodEnd) {
			continue
		}
		if record.StartedAt == nil || !record.FinishedAt.After(*record.StartedAt) {
			continue
		}
		serviceTimes = append(serviceTimes, roundMinutes(record.FinishedAt.Sub(*record.StartedAt)))
	}

	responseTimes, responseDiscarded, pendingCount, pendingOver24h :=
		e.responseCycles(periodStart, periodEnd, initiatedChatIDs, ds.Messages)

	returning := e.countReturning(originated, ds.HistoricalFinished)

	conversionRate := 0.0
	if totalChats > 0 {
		conversionRate = float64(len(originated)) / float64(totalChats) * 100
	}
	returnRate := 0.0
	if len(originated) > 0 {
		returnRate = float64(returning) / float64(len(originated)) * 100
	}

	totalFinished, totalWaiting, totalInService := 0, 0, 0
	for _, apt := range appointmentsInRange {
		switch apt.Status {
		case StatusFinished:
			totalFinished++
		case StatusWaiting:
			totalWaiting++
		case StatusInService:
			totalInService++
		}
	}

	return aggregateResult{
		averageQueueTime:            average(queueTimes),
		averageServiceTime:          average(serviceTimes),
		averageResponseTime:         average(responseTimes),
		conversionRate:              round1(conversionRate),
		returnRate:                  round1(returnRate),
		totalChats:                  totalChats,
		totalAppointments:           len(originated),
		totalFinished:               totalFinished,
		totalWaiting:                totalWaiting,
		totalInService:              totalInService,
		pendingResponseCount:        pendingCount,
		pendingResponseOver24hCount: pendingOver24h,
		queueTimes:                  queueTimes,
		serviceTimes:                serviceTimes,
		responseTimes:               responseTimes,
		responseDiscardedOver24h:    responseDiscarded,
		funnel: []FunnelItem{
			{Name: "Conversas iniciadas", Value: totalChats, Fill: "#3b82f6"},
			{Name: "Agendamentos", Value: len(originated), Fill: "#a855f7"},
			{Name: "Consultas finalizadas", Value: totalFinished, Fill: "#10b981"},
		},
	}
}

// responseCycles pairs each in-period incoming message with the next manual
// human reply in the same chat. Cycles slower than the discard ceiling are
// abandoned threads, not slow replies; automation never closes a cycle.
func (e *Engine) responseCycles(periodStart, periodEnd time.Time, initiatedChatIDs map[int64]struct{}, messages []MessageRow) (responseTimes []int, discardedOver24h, pendingCount, pendingOver24h int) {
	byChat := make(map[int64][]MessageRow)
	for _, msg := range messages {
		if msg.ChatID == 0 {
			continue
		}
		byChat[msg.ChatID] = append(byChat[msg.ChatID], msg)
	}

	for chatID, chatMessages := range byChat {
		if _, ok := initiatedChatIDs[chatID]; !ok {
			continue
		}
		sort.SliceStable(chatMessages, func(i, j int) bool {
			return timestampOrZero(chatMessages[i].CreatedAt) < timestampOrZero(chatMessages[j].CreatedAt)
		})

		var pendingIncomingAt *time.Time
		for _, msg := range chatMessages {
			ts := msg.CreatedAt
			if ts == nil {
				continue
			}
			if isIncomingMessage(msg) {
				if within(ts, periodStart, periodEnd) {
					pendingIncomingAt = ts
				}
				continue
			}

			if pendingIncomingAt == nil {
				continue
			}
			if !e.isManualOutgoingMessage(msg) {
				continue
			}

			diffMinutes := roundMinutes(ts.Sub(*pendingIncomingAt))
			if diffMinutes < 0 {
				pendingIncomingAt = nil
				continue
			}
			if diffMinutes > e.responseDiscardMinutes {
				discardedOver24h++
				pendingIncomingAt = nil
				continue
			}

			responseTimes = append(responseTimes, e.hours.MinutesBetween(*pendingIncomingAt, *ts))
			pendingIncomingAt = nil
		}

		if pendingIncomingAt != nil {
			pendingCount++
			if roundMinutes(periodEnd.Sub(*pendingIncomingAt)) > e.responseDiscardMinutes {
				pendingOver24h++
			}
		}
	}
	return responseTimes, discardedOver24h, pendingCount, pendingOver24h
}

// countReturning counts originated appointments whose patient has at least
// one finished visit strictly before the appointment's reference instant.
// The lookback set spans all history, not just the period.
func (e *Engine) countReturning(originated, historicalFinished []Appointment) int {
	finishedByPatient := make(map[int64][]time.Time)
	for _, apt := range historicalFinished {
		if apt.PatientID == nil || *apt.PatientID == 0 {
			continue
		}
		ref := firstTimestamp(apt.FinishedAt, apt.StartTime, apt.CreatedAt)
		if ref == nil {
			continue
		}
		finishedByPatient[*apt.PatientID] = append(finishedByPatient[*apt.PatientID], *ref)
	}
	for _, list := range finishedByPatient {
		sort.Slice(list, func(i, j int) bool { return list[i].Before(list[j]) })
	}

	returning := 0
	for _, apt := range originated {
		if apt.PatientID == nil || *apt.PatientID == 0 {
			continue
		}
		ref := apt.ReferenceTime()
		if ref == nil {
			continue
		}
		history := finishedByPatient[*apt.PatientID]
		if len(history) > 0 && history[0].Before(*ref) {
			returning++
		}
	}
	return returning
}

func isIncomingMessage(msg MessageRow) bool {
	switch strings.ToUpper(msg.Sender) {
	case "HUMAN_AGENT", "AI_AGENT", "ME":
		return false
	}
	return true
}

func (e *Engine) isManualOutgoingMessage(msg MessageRow) bool {
	if strings.ToUpper(msg.Sender) != "HUMAN_AGENT" {
		return false
	}
	if msg.AutoSentPauseSession != "" {
		return false
	}
	return !e.hasAutomationMarker(msg.ToolData)
}

// hasAutomationMarker applies the product-defined allowlist of automation
// provenance hints carried in tool_data.
func (e *Engine) hasAutomationMarker(toolData map[string]any) bool {
	if len(toolData) == 0 {
		return false
	}
	source := ""
	for _, key := range []string{"source", "origin", "automation_source"} {
		if v, ok := toolData[key]; ok && v != nil {
			if s := fmt.Sprint(v); s != "" {
				source = strings.ToLower(s)
				break
			}
		}
	}
	for _, marker := range e.automationMarkers {
		if strings.Contains(source, marker) {
			return true
		}
	}
	if v, ok := toolData["is_automation"].(bool); ok {
		return v
	}
	return false
}

func firstTimestamp(candidates ...*time.Time) *time.Time {
	for _, c := range candidates {
		if c != nil {
			return c
		}
	}
	return nil
}

func timestampOrZero(ts *time.Time) int64 {
	if ts == nil {
		return 0
	}
	return ts.UnixMilli()
}

func roundMinutes(d time.Duration) int {
	return int(math.Round(d.Minutes()))
}

func average(values []int) int {
	if len(values) == 0 {
		return 0
	}
	sum := 0
	for _, v := range values {
		sum += v
	}
	return int(math.Round(float64(sum) / float64(len(values))))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// percentile is nearest-rank over a copy of the sample; empty samples are 0.
func percentile(values []int, p int) int {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]int, len(values))
	copy(sorted, values)
	sort.Ints(sorted)
	idx := int(math.Ceil(float64(p)/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx > len(sorted)-1 {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
