package crm

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeDataset(t *testing.T) {
	doc := `{
		"chats": [
			{"id": 1, "created_at": "2026-02-13T12:00:00Z"},
			{"id": 2, "created_at": "not a date"},
			{"created_at": "2026-02-13T12:00:00Z"}
		],
		"appointments": [
			{"id": 11, "chat_id": "1", "patient_id": 22, "status": "finished",
			 "start_time": "2026-02-13T13:00:00Z", "finished_at": "2026-02-13T13:45:00Z"},
			{"id": 12, "start_time": "13 de fevereiro"}
		],
		"historical_finished_appointments": [
			{"id": 1, "patient_id": 22, "status": "finished", "finished_at": "2026-01-10T12:40:00Z"}
		],
		"medical_records": [
			{"id": 100, "appointment_id": 11, "started_at": "2026-02-13T13:00:00Z", "finished_at": "2026-02-13T13:30:00Z"}
		],
		"messages": [
			{"id": 1, "chat_id": 1, "sender": "CUSTOMER", "created_at": "2026-02-13T12:05:00Z"},
			{"id": "msg-2", "chat_id": "1", "sender": "HUMAN_AGENT", "created_at": "2026-02-13T12:20:00Z",
			 "tool_data": {"source": "manual_chat"}},
			{"id": 3, "chat_id": null, "sender": "CUSTOMER", "created_at": "2026-02-13T12:25:00Z"},
			{"id": 4, "chat_id": "abc", "sender": "CUSTOMER", "created_at": "2026-02-13T12:30:00Z"}
		]
	}`

	ds, stats, err := DecodeDataset(strings.NewReader(doc))
	require.NoError(t, err)

	// Chat 2 keeps a nil timestamp; the chat with no id is dropped.
	require.Len(t, ds.Chats, 2)
	assert.Equal(t, int64(1), ds.Chats[0].ID)
	assert.NotNil(t, ds.Chats[0].CreatedAt)
	assert.Nil(t, ds.Chats[1].CreatedAt)
	assert.Equal(t, 1, stats.ChatsSkipped)

	require.Len(t, ds.Appointments, 2)
	first := ds.Appointments[0]
	require.NotNil(t, first.ChatID)
	assert.Equal(t, int64(1), *first.ChatID)
	require.NotNil(t, first.PatientID)
	assert.Equal(t, int64(22), *first.PatientID)
	assert.Equal(t, StatusFinished, first.Status)
	// Unparseable start_time degrades to a nil anchor, not a dropped row.
	assert.Nil(t, ds.Appointments[1].StartTime)
	assert.Equal(t, 0, stats.AppointmentsSkipped)

	require.Len(t, ds.HistoricalFinished, 1)
	require.Len(t, ds.MedicalRecords, 1)
	require.NotNil(t, ds.MedicalRecords[0].AppointmentID)

	// Numeric and string chat ids both resolve; null and non-numeric drop.
	require.Len(t, ds.Messages, 2)
	assert.Equal(t, "1", ds.Messages[0].ID)
	assert.Equal(t, "msg-2", ds.Messages[1].ID)
	assert.Equal(t, int64(1), ds.Messages[1].ChatID)
	assert.Equal(t, "manual_chat", ds.Messages[1].ToolData["source"])
	assert.Equal(t, 2, stats.MessagesSkipped)
	assert.Equal(t, 3, stats.Total())
}

func TestDecodeDatasetMalformedDocument(t *testing.T) {
	_, _, err := DecodeDataset(strings.NewReader(`{"chats": [`))
	assert.Error(t, err)
}

func TestDecodeDatasetEmptyCollections(t *testing.T) {
	ds, stats, err := DecodeDataset(strings.NewReader(`{}`))
	require.NoError(t, err)
	assert.Empty(t, ds.Chats)
	assert.Zero(t, stats.Total())
}

func TestParseTimestampLayouts(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"2026-02-13T12:00:00.000Z", time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC), true},
		{"2026-02-13T12:00:00-03:00", time.Date(2026, 2, 13, 15, 0, 0, 0, time.UTC), true},
		{"2026-02-13T12:00:00", time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC), true},
		{"2026-02-13 12:00:00", time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC), true},
		{"2026-02-13", time.Date(2026, 2, 13, 0, 0, 0, 0, time.UTC), true},
		{"ontem", time.Time{}, false},
		{"", time.Time{}, false},
	}
	for _, tc := range tests {
		in := tc.in
		got := parseTimestamp(&in)
		if !tc.ok {
			assert.Nil(t, got, "input %q", tc.in)
			continue
		}
		require.NotNil(t, got, "input %q", tc.in)
		assert.True(t, got.Equal(tc.want), "input %q: got %s want %s", tc.in, got, tc.want)
	}
}

func TestDecodeThenAggregate(t *testing.T) {
	doc := `{
		"chats": [{"id": 1, "created_at": "2026-02-13T12:00:00Z"}],
		"appointments": [
			{"id": 11, "chat_id": 1, "patient_id": 22, "status": "finished",
			 "start_time": "2026-02-13T13:00:00Z",
			 "queue_entered_at": "2026-02-13T12:50:00Z",
			 "in_service_at": "2026-02-13T13:00:00Z",
			 "finished_at": "2026-02-13T13:45:00Z"}
		],
		"messages": [
			{"id": 1, "chat_id": 1, "sender": "CUSTOMER", "created_at": "2026-02-13T12:05:00Z"},
			{"id": 2, "chat_id": 1, "sender": "HUMAN_AGENT", "created_at": "2026-02-13T12:20:00Z"}
		]
	}`

	ds, _, err := DecodeDataset(strings.NewReader(doc))
	require.NoError(t, err)

	e := NewEngine(Options{})
	rng := dayRange(t, e, "2026-02-13")
	payload, err := e.BuildMetricsPayload(rng, ds)
	require.NoError(t, err)

	assert.Equal(t, 10, payload.AverageQueueTime)
	assert.Equal(t, 15, payload.AverageResponseTime)
	assert.Equal(t, 100.0, payload.ConversionRate)
}
