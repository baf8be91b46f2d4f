package database

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var runsBucket = []byte("runs")

// ErrRunNotFound is returned when no run is stored under the requested id.
var ErrRunNotFound = errors.New("run not found")

// RunRecord is the persisted summary of one scenario run.
type RunRecord struct {
	RunID         string        `json:"run_id"`
	Scenario      string        `json:"scenario"`
	Clients       []string      `json:"clients"`
	Impls         []string      `json:"impls"`
	Start         time.Time     `json:"start"`
	Elapsed       time.Duration `json:"elapsed"`
	Offset        time.Duration `json:"offset"`
	Successful    int64         `json:"successful"`
	TotalTxsTried int64         `json:"total_txs_tried"`
	MaxTotalTxs   int64         `json:"max_total_txs"`
	Agreeing      int           `json:"agreeing"`
	TxHashes      []string      `json:"tx_hashes"`
}

type Database struct {
	db *bbolt.DB
}

// InitDB opens the database at dbPath and creates the "runs" bucket.
func (d *Database) InitDB(dbPath string) (err error) {
	boltDB, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return fmt.Errorf("failed to open run database at %s: %w", dbPath, err)
	}
	d.db = boltDB

	err = d.db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(runsBucket)
		return err
	})
	if err != nil {
		d.db.Close()
		return err
	}
	return nil
}

// SaveRun stores a run record, replacing any record with the same id.
func (d *Database) SaveRun(record *RunRecord) error {
	if record.RunID == "" {
		return errors.New("run record has no id")
	}
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return d.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(runsBucket)
		if b == nil {
			return errors.New("runs bucket not found")
		}
		return b.Put([]byte(record.RunID), data)
	})
}

// GetRun returns the run stored under runID.
func (d *Database) GetRun(runID string) (*RunRecord, error) {
	var record *RunRecord
	err := d.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(runsBucket)
		if b == nil {
			return errors.New("runs bucket not found")
		}
		data := b.Get([]byte(runID))
		if data == nil {
			return ErrRunNotFound
		}
		record = &RunRecord{}
		return json.Unmarshal(data, record)
	})
	return record, err
}

// LatestRun returns the most recently stored run.
// Run ids are xids, which sort by creation time.
func (d *Database) LatestRun() (*RunRecord, error) {
	var record *RunRecord
	err := d.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(runsBucket)
		if b == nil {
			return errors.New("runs bucket not found")
		}
		_, data := b.Cursor().Last()
		if data == nil {
			return ErrRunNotFound
		}
		record = &RunRecord{}
		return json.Unmarshal(data, record)
	})
	return record, err
}

// ListRuns returns all stored runs, oldest first.
func (d *Database) ListRuns() ([]*RunRecord, error) {
	records := make([]*RunRecord, 0)
	err := d.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(runsBucket)
		if b == nil {
			return errors.New("runs bucket not found")
		}
		return b.ForEach(func(_, v []byte) error {
			record := &RunRecord{}
			if err := json.Unmarshal(v, record); err != nil {
				return err
			}
			records = append(records, record)
			return nil
		})
	})
	return records, err
}

// Close closes the database.
func (d *Database) Close() error {
	return d.db.Close()
}
