package crm

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// DecodeStats reports rows dropped at the ingestion boundary. A skipped row
// is one whose identity could not be established; rows with merely missing or
// malformed timestamps are kept with nil anchors and excluded per metric.
type DecodeStats struct {
	ChatsSkipped          int
	AppointmentsSkipped   int
	HistoricalSkipped     int
	MedicalRecordsSkipped int
	MessagesSkipped       int
}

// Total returns the number of rows dropped across all entities.
func (s DecodeStats) Total() int {
	return s.ChatsSkipped + s.AppointmentsSkipped + s.HistoricalSkipped +
		s.MedicalRecordsSkipped + s.MessagesSkipped
}

type datasetWire struct {
	Chats              []json.RawMessage `json:"chats"`
	Appointments       []json.RawMessage `json:"appointments"`
	HistoricalFinished []json.RawMessage `json:"historical_finished_appointments"`
	MedicalRecords     []json.RawMessage `json:"medical_records"`
	Messages           []json.RawMessage `json:"messages"`
}

// flexID tolerates numeric ids arriving as JSON numbers or numeric strings,
// which is how the schemaless query layer ships them.
type flexID int64

func (f *flexID) UnmarshalJSON(b []byte) error {
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		if v, err := n.Int64(); err == nil {
			*f = flexID(v)
			return nil
		}
		if v, err := n.Float64(); err == nil {
			*f = flexID(int64(v))
			return nil
		}
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return fmt.Errorf("non-numeric id %q", s)
		}
		*f = flexID(v)
		return nil
	}
	return fmt.Errorf("unsupported id %s", string(b))
}

type chatWire struct {
	ID        *flexID `json:"id"`
	CreatedAt *string `json:"created_at"`
}

type appointmentWire struct {
	ID             *flexID `json:"id"`
	ChatID         *flexID `json:"chat_id"`
	PatientID      *flexID `json:"patient_id"`
	StartTime      *string `json:"start_time"`
	CreatedAt      *string `json:"created_at"`
	Status         *string `json:"status"`
	QueueEnteredAt *string `json:"queue_entered_at"`
	InServiceAt    *string `json:"in_service_at"`
	FinishedAt     *string `json:"finished_at"`
}

type medicalRecordWire struct {
	ID            *flexID `json:"id"`
	AppointmentID *flexID `json:"appointment_id"`
	StartedAt     *string `json:"started_at"`
	FinishedAt    *string `json:"finished_at"`
	CreatedAt     *string `json:"created_at"`
}

type messageWire struct {
	ID                   json.RawMessage `json:"id"`
	ChatID               *flexID         `json:"chat_id"`
	Sender               *string         `json:"sender"`
	CreatedAt            *string         `json:"created_at"`
	AutoSentPauseSession *string         `json:"auto_sent_pause_session"`
	ToolData             map[string]any  `json:"tool_data"`
}

// DecodeDataset reads a JSON document with chats, appointments,
// historical_finished_appointments, medical_records and messages collections
// and converts each loosely-shaped row into its typed form. Rows without a
// usable identity are dropped and counted; a malformed document fails as a
// whole.
func DecodeDataset(r io.Reader) (*Dataset, DecodeStats, error) {
	var wire datasetWire
	if err := json.NewDecoder(r).Decode(&wire); err != nil {
		return nil, DecodeStats{}, fmt.Errorf("crm: decode dataset: %w", err)
	}

	ds := &Dataset{}
	var stats DecodeStats

	for _, raw := range wire.Chats {
		var c chatWire
		if err := json.Unmarshal(raw, &c); err != nil || c.ID == nil {
			stats.ChatsSkipped++
			continue
		}
		ds.Chats = append(ds.Chats, ChatRow{
			ID:        int64(*c.ID),
			CreatedAt: parseTimestamp(c.CreatedAt),
		})
	}

	ds.Appointments, stats.AppointmentsSkipped = decodeAppointments(wire.Appointments)
	ds.HistoricalFinished, stats.HistoricalSkipped = decodeAppointments(wire.HistoricalFinished)

	for _, raw := range wire.MedicalRecords {
		var m medicalRecordWire
		if err := json.Unmarshal(raw, &m); err != nil || m.ID == nil {
			stats.MedicalRecordsSkipped++
			continue
		}
		ds.MedicalRecords = append(ds.MedicalRecords, MedicalRecordRow{
			ID:            int64(*m.ID),
			AppointmentID: idPtr(m.AppointmentID),
			StartedAt:     parseTimestamp(m.StartedAt),
			FinishedAt:    parseTimestamp(m.FinishedAt),
			CreatedAt:     parseTimestamp(m.CreatedAt),
		})
	}

	for _, raw := range wire.Messages {
		var m messageWire
		if err := json.Unmarshal(raw, &m); err != nil || m.ChatID == nil || *m.ChatID == 0 {
			stats.MessagesSkipped++
			continue
		}
		row := MessageRow{
			ID:        strings.Trim(string(m.ID), `"`),
			ChatID:    int64(*m.ChatID),
			CreatedAt: parseTimestamp(m.CreatedAt),
			ToolData:  m.ToolData,
		}
		if m.Sender != nil {
			row.Sender = *m.Sender
		}
		if m.AutoSentPauseSession != nil {
			row.AutoSentPauseSession = *m.AutoSentPauseSession
		}
		ds.Messages = append(ds.Messages, row)
	}

	return ds, stats, nil
}

func decodeAppointments(raws []json.RawMessage) ([]Appointment, int) {
	var out []Appointment
	skipped := 0
	for _, raw := range raws {
		var a appointmentWire
		if err := json.Unmarshal(raw, &a); err != nil || a.ID == nil {
			skipped++
			continue
		}
		apt := Appointment{
			ID:             int64(*a.ID),
			ChatID:         idPtr(a.ChatID),
			PatientID:      idPtr(a.PatientID),
			StartTime:      parseTimestamp(a.StartTime),
			CreatedAt:      parseTimestamp(a.CreatedAt),
			QueueEnteredAt: parseTimestamp(a.QueueEnteredAt),
			InServiceAt:    parseTimestamp(a.InServiceAt),
			FinishedAt:     parseTimestamp(a.FinishedAt),
		}
		if a.Status != nil {
			apt.Status = AppointmentStatus(*a.Status)
		}
		out = append(out, apt)
	}
	return out, skipped
}

func idPtr(f *flexID) *int64 {
	if f == nil {
		return nil
	}
	v := int64(*f)
	return &v
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTimestamp returns nil for absent or malformed values; the aggregator
// treats nil anchors as missing data, never as zero.
func parseTimestamp(s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, *s); err == nil {
			utc := t.UTC()
			return &utc
		}
	}
	return nil
}
