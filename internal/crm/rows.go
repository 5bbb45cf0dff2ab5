package crm

import "time"

// AppointmentStatus is the scheduling lifecycle vocabulary.
type AppointmentStatus string

const (
	StatusScheduled      AppointmentStatus = "scheduled"
	StatusWaiting        AppointmentStatus = "waiting"
	StatusInService      AppointmentStatus = "in_service"
	StatusWaitingPayment AppointmentStatus = "waiting_payment"
	StatusFinished       AppointmentStatus = "finished"
	StatusCancelled      AppointmentStatus = "cancelled"
	StatusBlocked        AppointmentStatus = "blocked"
)

// ChatRow is a conversation thread's creation record.
type ChatRow struct {
	ID        int64
	CreatedAt *time.Time
}

// Appointment is a scheduling/queue record. Optional anchors are nil when the
// source row never reached that lifecycle stage or carried a malformed value.
type Appointment struct {
	ID             int64
	ChatID         *int64
	PatientID      *int64
	StartTime      *time.Time
	CreatedAt      *time.Time
	Status         AppointmentStatus
	QueueEnteredAt *time.Time
	InServiceAt    *time.Time
	FinishedAt     *time.Time
}

// ReferenceTime is the instant an appointment is attributed to: its scheduled
// start, falling back to creation.
func (a Appointment) ReferenceTime() *time.Time {
	if a.StartTime != nil {
		return a.StartTime
	}
	return a.CreatedAt
}

// MedicalRecordRow carries a clinical encounter's timing, which may start and
// finish independently from the appointment's queue state.
type MedicalRecordRow struct {
	ID            int64
	AppointmentID *int64
	StartedAt     *time.Time
	FinishedAt    *time.Time
	CreatedAt     *time.Time
}

// MessageRow is a single chat message. ToolData carries loosely-shaped
// automation provenance from the messaging layer.
type MessageRow struct {
	ID                   string
	ChatID               int64
	Sender               string
	CreatedAt            *time.Time
	AutoSentPauseSession string
	ToolData             map[string]any
}

// Dataset bundles the row sets the caller fetched for one metrics request.
// HistoricalFinished spans all time (not period-scoped); it feeds the
// return-rate lookback.
type Dataset struct {
	Chats              []ChatRow
	Appointments       []Appointment
	HistoricalFinished []Appointment
	MedicalRecords     []MedicalRecordRow
	Messages           []MessageRow
}

func within(ts *time.Time, startInclusive, endExclusive time.Time) bool {
	return ts != nil && !ts.Before(startInclusive) && ts.Before(endExclusive)
}
