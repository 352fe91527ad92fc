package progress

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScopedAndMulti(t *testing.T) {
	var a, b Recorder
	r := Scoped(Multi(&a, nil, &b), "run-1")
	r.Report(Event{Level: LevelInfo, Message: "hello"})

	require.Len(t, a.Events(), 1)
	require.Len(t, b.Events(), 1)
	got := a.Events()[0]
	assert.Equal(t, "run-1", got.RunID)
	assert.False(t, got.Time.IsZero())

	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	r.Report(Event{Time: fixed})
	assert.Equal(t, fixed, a.Events()[1].Time)
}

func TestLogReporter(t *testing.T) {
	var buf bytes.Buffer
	LogReporter{Logger: zerolog.New(&buf)}.Report(Event{
		RunID:   "r1",
		Level:   LevelWarn,
		Message: "State with IsoCode ON already exists. Skipping.",
		Entity:  EntityState,
		IsoCode: "ON",
		Outcome: OutcomeSkipped,
	})

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, "ON", line["iso_code"])
	assert.Equal(t, "skipped", line["outcome"])
	assert.NotContains(t, line, "evidence")
}

func TestHub(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe(1)
	assert.Equal(t, 1, h.Subscribers())

	h.Report(Event{Message: "one"})
	h.Report(Event{Message: "dropped"})
	assert.Equal(t, "one", (<-ch).Message)

	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, h.Subscribers())
	h.Report(Event{Message: "after"})
}

type fakePublisher struct {
	subject string
	data    [][]byte
	err     error
}

func (f *fakePublisher) Publish(subject string, data []byte) error {
	f.subject = subject
	f.data = append(f.data, data)
	return f.err
}

func TestNATSReporter(t *testing.T) {
	pub := &fakePublisher{}
	NATSReporter{Conn: pub, Subject: "orgsetup.runs.events"}.Report(Event{RunID: "r1", Message: "m", Outcome: OutcomeCreated})

	assert.Equal(t, "orgsetup.runs.events", pub.subject)
	require.Len(t, pub.data, 1)
	var e Event
	require.NoError(t, json.Unmarshal(pub.data[0], &e))
	assert.Equal(t, OutcomeCreated, e.Outcome)

	pub.err = errors.New("nats: connection closed")
	NATSReporter{Conn: pub, Subject: "s"}.Report(Event{})
	assert.Len(t, pub.data, 2)
}
