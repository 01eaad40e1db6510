package commands

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muskanmahajan37/gazebo/pkg/log"
)

func createTestLogFile(t *testing.T, events []log.Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.glog")

	logger, err := log.NewFileLogger(path)
	require.NoError(t, err)
	for _, e := range events {
		logger.Log(e)
	}
	require.NoError(t, logger.Close())
	return path
}

var ts = time.Date(2026, 1, 28, 10, 15, 32, 123456000, time.UTC)

func sampleEvents() []log.Event {
	return []log.Event{
		{
			Timestamp:    ts,
			ConnectionID: "abcdef1234567890",
			Direction:    log.DirectionOut,
			Layer:        log.LayerWire,
			Category:     log.CategoryControl,
			Topic:        "/world/pose",
			EndpointID:   1,
			Control:      &log.ControlEvent{Kind: "sub", MsgType: "gazebo.msgs.Pose", Host: "127.0.0.1", Port: 5000},
		},
		{
			Timestamp:    ts.Add(time.Millisecond),
			ConnectionID: "abcdef1234567890",
			Direction:    log.DirectionIn,
			Layer:        log.LayerTransport,
			Category:     log.CategoryMessage,
			RemoteAddr:   "127.0.0.1:11345",
			Frame:        &log.FrameEvent{Size: 8, Data: []byte{0xde, 0xad, 0xbe, 0xef}},
		},
		{
			Timestamp:    ts.Add(2 * time.Millisecond),
			ConnectionID: "abcdef1234567890",
			Direction:    log.DirectionIn,
			Layer:        log.LayerSubscription,
			Category:     log.CategoryState,
			Topic:        "/world/pose",
			EndpointID:   1,
			StateChange:  &log.StateChangeEvent{Entity: log.StateEntitySubscription, OldState: "READ_PENDING", NewState: "CLOSED", Reason: "remote shutdown"},
		},
		{
			Timestamp:  ts.Add(3 * time.Millisecond),
			Layer:      log.LayerSubscription,
			Category:   log.CategoryError,
			Topic:      "/world/clock",
			EndpointID: 2,
			Error:      &log.ErrorEventData{Layer: log.LayerSubscription, Message: "connection closed", Context: "init"},
		},
	}
}

func TestViewFormatsEveryEventKind(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	var buf bytes.Buffer
	require.NoError(t, RunView(path, FilterOptions{}, &buf))
	out := buf.String()

	assert.Contains(t, out, "2026-01-28T10:15:32.123456Z [conn:abcdef12] OUT CTRL sub")
	assert.Contains(t, out, "MsgType: gazebo.msgs.Pose")
	assert.Contains(t, out, "Subscriber: 127.0.0.1:5000")
	assert.Contains(t, out, "IN  TRANSPORT Frame")
	assert.Contains(t, out, "Data: deadbeef")
	assert.Contains(t, out, "READ_PENDING -> CLOSED")
	assert.Contains(t, out, "Reason: remote shutdown")
	assert.Contains(t, out, "Message: connection closed")
	assert.Contains(t, out, "Topic: /world/clock  Endpoint: 2")
}

func TestViewAppliesFilters(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	var buf bytes.Buffer
	require.NoError(t, RunView(path, FilterOptions{Topic: "/world/pose", Category: "state"}, &buf))
	out := buf.String()

	assert.Equal(t, 1, strings.Count(out, "[conn:"))
	assert.Contains(t, out, "SUBSCRIPTION State")
}

func TestViewRejectsBadFlags(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	for name, opts := range map[string]FilterOptions{
		"layer":     {Layer: "service"},
		"direction": {Direction: "sideways"},
		"category":  {Category: "snapshot"},
		"endpoint":  {Endpoint: "x"},
		"time":      {TimeStart: "yesterday"},
	} {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			assert.Error(t, RunView(path, opts, &buf))
			assert.Empty(t, buf.String())
		})
	}
}

func TestFilterOptionsBuild(t *testing.T) {
	f, err := FilterOptions{
		ConnID:    "c1",
		Topic:     "/t",
		Endpoint:  "42",
		TimeStart: "2026-01-28T10:00:00Z",
		Layer:     "WIRE",
		Direction: "out",
		Category:  "control",
	}.Build()
	require.NoError(t, err)

	assert.Equal(t, "c1", f.ConnectionID)
	assert.Equal(t, "/t", f.Topic)
	assert.Equal(t, uint64(42), f.EndpointID)
	require.NotNil(t, f.TimeStart)
	require.NotNil(t, f.Layer)
	assert.Equal(t, log.LayerWire, *f.Layer)
	require.NotNil(t, f.Direction)
	assert.Equal(t, log.DirectionOut, *f.Direction)
	require.NotNil(t, f.Category)
	assert.Equal(t, log.CategoryControl, *f.Category)
	assert.Nil(t, f.TimeEnd)
}

func TestStats(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	stats, err := collectStats(path)
	require.NoError(t, err)

	assert.Equal(t, 4, stats.TotalEvents)
	assert.Equal(t, 2, stats.EventsByLayer[log.LayerSubscription])
	assert.Equal(t, 1, stats.Errors)
	require.Len(t, stats.Connections, 1)
	conn := stats.Connections["abcdef1234567890"]
	assert.Equal(t, 3, conn.Events)
	assert.Equal(t, 8, conn.Bytes)
	assert.Equal(t, "127.0.0.1:11345", conn.RemoteAddr)

	require.Len(t, stats.Topics, 2)
	pose := stats.Topics["/world/pose"]
	assert.Len(t, pose.Endpoints, 1)
	assert.Equal(t, 1, pose.Controls)
	assert.Equal(t, 1, stats.Topics["/world/clock"].Errors)

	var buf bytes.Buffer
	require.NoError(t, RunStats(path, &buf))
	out := buf.String()
	assert.Contains(t, out, "Total Events: 4")
	assert.Contains(t, out, "SUBSCRIPTION:")
	assert.Contains(t, out, "[abcdef12] 3 events, 8 bytes")
	assert.Contains(t, out, "/world/pose: 1 endpoints, 0 frames, 1 control, 0 errors")
	assert.Contains(t, out, "Errors: 1")
}

func TestStatsEmptyLog(t *testing.T) {
	path := createTestLogFile(t, nil)

	var buf bytes.Buffer
	require.NoError(t, RunStats(path, &buf))
	assert.Contains(t, buf.String(), "Total Events: 0")
	assert.NotContains(t, buf.String(), "Time Range")
}

func TestFilterWritesMatchingEvents(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())
	out := filepath.Join(t.TempDir(), "filtered.glog")

	n, err := RunFilter(path, out, FilterOptions{Endpoint: "1"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	r, err := log.NewReader(out)
	require.NoError(t, err)
	defer r.Close()
	events, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, events, 2)
	for _, e := range events {
		assert.Equal(t, uint64(1), e.EndpointID)
	}
}

func TestExportJSONL(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	var buf bytes.Buffer
	require.NoError(t, RunExport(path, "jsonl", FilterOptions{Layer: "transport"}, &buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &decoded))
	assert.Equal(t, "abcdef1234567890", decoded["ConnectionID"])
}

func TestExportCSV(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	var buf bytes.Buffer
	require.NoError(t, RunExport(path, "csv", FilterOptions{}, &buf))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 5)
	assert.Equal(t, "topic", records[0][5])
	assert.Equal(t, []string{"sub", ""}, []string{records[1][7], records[1][8]})
	assert.Equal(t, []string{"Frame", "8"}, []string{records[2][7], records[2][8]})
	assert.Equal(t, "2", records[4][6])
}

func TestExportUnknownFormat(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())
	err := RunExport(path, "xml", FilterOptions{}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "unknown format")
}

func TestFilterOptionsBuildReportsEveryBadFlag(t *testing.T) {
	_, err := FilterOptions{Layer: "service", Category: "snapshot", TimeEnd: "soon"}.Build()
	require.Error(t, err)
	assert.ErrorContains(t, err, `invalid layer "service" (one of subscription, transport, wire)`)
	assert.ErrorContains(t, err, `invalid category "snapshot"`)
	assert.ErrorContains(t, err, "invalid time-end")
}

func TestViewMissingFile(t *testing.T) {
	err := RunView(filepath.Join(t.TempDir(), "absent.glog"), FilterOptions{}, &bytes.Buffer{})
	assert.Error(t, err)
}
