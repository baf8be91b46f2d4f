package events

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestJournalSinceFiltersByTimeAndName(t *testing.T) {
	j, err := OpenMemoryJournal()
	require.NoError(t, err)
	defer j.Close()

	base := time.Unix(1700000000, 0)
	require.NoError(t, j.Append(Event{Time: base, Scenario: "tx_spam", Event: Started}))
	require.NoError(t, j.Append(Event{Time: base.Add(time.Second), Scenario: "tx_spam", Event: SendingTxDone, Fields: map[string]interface{}{"hash": "0x01"}}))
	require.NoError(t, j.Append(Event{Time: base.Add(2 * time.Second), Scenario: "other", Event: SendingTxDone}))
	require.NoError(t, j.Append(Event{Time: base.Add(3 * time.Second), Scenario: "tx_spam", Event: SendingTxDone, Fields: map[string]interface{}{"hash": "0x02"}}))

	all, err := j.Since(base, "", "")
	require.NoError(t, err)
	require.Len(t, all, 4)

	sent, err := j.Since(base.Add(500*time.Millisecond), "tx_spam", SendingTxDone)
	require.NoError(t, err)
	require.Len(t, sent, 2)
	require.Equal(t, "0x01", sent[0].Fields["hash"])
	require.Equal(t, "0x02", sent[1].Fields["hash"])

	late, err := j.Since(base.Add(2500*time.Millisecond), "tx_spam", "")
	require.NoError(t, err)
	require.Len(t, late, 1)
}

func TestJournalSameTimestampKeepsBothEvents(t *testing.T) {
	j, err := OpenMemoryJournal()
	require.NoError(t, err)
	defer j.Close()

	now := time.Now()
	require.NoError(t, j.Append(Event{Time: now, Scenario: "s", Event: "a"}))
	require.NoError(t, j.Append(Event{Time: now, Scenario: "s", Event: "b"}))

	events, err := j.Since(now, "s", "")
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, "a", events[0].Event)
	require.Equal(t, "b", events[1].Event)
}

func TestJournalPersistsOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events")
	j, err := OpenJournal(path)
	require.NoError(t, err)
	now := time.Now()
	require.NoError(t, j.Append(Event{Time: now, Scenario: "s", Event: Finished}))
	require.NoError(t, j.Close())

	j, err = OpenJournal(path)
	require.NoError(t, err)
	defer j.Close()
	events, err := j.Since(now.Add(-time.Minute), "s", Finished)
	require.NoError(t, err)
	require.Len(t, events, 1)
}

func TestLoggerJournalsHiddenEvents(t *testing.T) {
	j, err := OpenMemoryJournal()
	require.NoError(t, err)
	defer j.Close()

	start := time.Now().Add(-time.Second)
	logger := NewLogger("tx_spam", j)
	logger.LogScenario(SendingTx, false, Fields{"value": 100})
	logger.LogScenario(Waiting, true, Fields{"delay": 30})

	events, err := j.Since(start, "tx_spam", "")
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, SendingTx, events[0].Event)
	require.EqualValues(t, 100, events[0].Fields["value"])
	require.Equal(t, Waiting, events[1].Event)
}

func TestLoggerWithoutJournal(t *testing.T) {
	logger := NewLogger("tx_spam", nil)
	require.NotPanics(t, func() {
		logger.LogScenario(Started, true, nil)
	})
	require.Equal(t, "tx_spam", logger.Scenario())
}
