package events

import (
	"time"

	log "github.com/sirupsen/logrus"
)

// Event names emitted by the tx spam scenario.
const (
	Started             = "started"
	StartingClients     = "starting.clients"
	StartingClientsDone = "starting.clients.done"
	Waiting             = "waiting"
	WaitingDone         = "waiting.done"
	SendingTx           = "sending_transaction"
	SendingTxDone       = "sending_transaction.done"
	TxsResult           = "txs_result"
	StoppingClients     = "stopping_clients"
	StoppingClientsDone = "stopping_clients.done"
	Finished            = "finished"
)

// Fields are the structured fields attached to a scenario event.
type Fields map[string]interface{}

// Logger emits scenario events to logrus and records them in a journal.
type Logger struct {
	scenario string
	journal  *Journal
	now      func() time.Time
}

// NewLogger creates a logger for the named scenario. journal may be nil.
func NewLogger(scenario string, journal *Journal) *Logger {
	return &Logger{
		scenario: scenario,
		journal:  journal,
		now:      time.Now,
	}
}

// Scenario returns the scenario name events are keyed by.
func (l *Logger) Scenario() string {
	return l.scenario
}

// LogScenario emits an event. Events with show=false are logged at debug level
// but are always journaled.
func (l *Logger) LogScenario(event string, show bool, fields Fields) {
	entry := log.WithFields(log.Fields{
		"scenario": l.scenario,
		"event":    event,
	})
	if len(fields) > 0 {
		entry = entry.WithFields(log.Fields(fields))
	}
	if show {
		entry.Info(event)
	} else {
		entry.Debug(event)
	}

	if l.journal == nil {
		return
	}
	err := l.journal.Append(Event{
		Time:     l.now(),
		Scenario: l.scenario,
		Event:    event,
		Fields:   fields,
	})
	if err != nil {
		log.Warnf("[Events] Failed to journal %s: %v", event, err)
	}
}
