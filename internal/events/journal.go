package events

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Event is a single scenario event as stored in the journal.
type Event struct {
	Time     time.Time              `json:"time"`
	Scenario string                 `json:"scenario"`
	Event    string                 `json:"event"`
	Fields   map[string]interface{} `json:"fields,omitempty"`
}

// Journal is an append-only, time ordered store of scenario events.
// Keys are the big endian event time in nanoseconds followed by a sequence number.
type Journal struct {
	mutex sync.Mutex
	db    *leveldb.DB
	seq   uint32
}

// OpenJournal opens or creates the journal at path.
func OpenJournal(path string) (*Journal, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open event journal at %s: %w", path, err)
	}
	return &Journal{db: db}, nil
}

// OpenMemoryJournal opens a journal that lives only in memory.
func OpenMemoryJournal() (*Journal, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}
	return &Journal{db: db}, nil
}

// Append stores an event.
func (j *Journal) Append(e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}

	j.mutex.Lock()
	defer j.mutex.Unlock()
	j.seq++
	return j.db.Put(eventKey(e.Time, j.seq), data, &opt.WriteOptions{Sync: false})
}

// Since returns the events of a scenario recorded at or after t, oldest first.
// An empty name or event matches everything.
func (j *Journal) Since(t time.Time, scenario, event string) ([]Event, error) {
	events := make([]Event, 0)
	iter := j.db.NewIterator(&util.Range{Start: eventKey(t, 0)}, nil)
	defer iter.Release()
	for iter.Next() {
		var e Event
		if err := json.Unmarshal(iter.Value(), &e); err != nil {
			return nil, fmt.Errorf("corrupt journal entry: %w", err)
		}
		if scenario != "" && e.Scenario != scenario {
			continue
		}
		if event != "" && e.Event != event {
			continue
		}
		events = append(events, e)
	}
	return events, iter.Error()
}

// Close closes the journal.
func (j *Journal) Close() error {
	return j.db.Close()
}

func eventKey(t time.Time, seq uint32) []byte {
	key := make([]byte, 12)
	nanos := t.UnixNano()
	if nanos < 0 {
		nanos = 0
	}
	binary.BigEndian.PutUint64(key[:8], uint64(nanos))
	binary.BigEndian.PutUint32(key[8:], seq)
	return key
}
