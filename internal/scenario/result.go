package scenario

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mavleo96/tx-spam/internal/database"
)

// Result carries the statistics of one run from the driver to the propagation assertion.
// Counters are updated concurrently by the workers.
type Result struct {
	RunID       string
	Clients     []string
	Start       time.Time
	Elapsed     time.Duration
	Offset      time.Duration
	MaxTotalTxs int64
	// Agreeing is the number of clients that had observed every accepted
	// transfer when the consensus window closed.
	Agreeing int

	successful    atomic.Int64
	totalTxsTried atomic.Int64

	mutex    sync.Mutex
	txHashes []common.Hash
}

// Successful returns the number of transfers the clients accepted.
func (r *Result) Successful() int64 {
	return r.successful.Load()
}

// TotalTxsTried returns the number of transfers attempted.
func (r *Result) TotalTxsTried() int64 {
	return r.totalTxsTried.Load()
}

// TxHashes returns the hashes of accepted transfers.
func (r *Result) TxHashes() []common.Hash {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	hashes := make([]common.Hash, len(r.txHashes))
	copy(hashes, r.txHashes)
	return hashes
}

func (r *Result) tried() {
	r.totalTxsTried.Add(1)
}

func (r *Result) accepted(hash common.Hash) {
	r.successful.Add(1)
	r.mutex.Lock()
	r.txHashes = append(r.txHashes, hash)
	r.mutex.Unlock()
}

// Record converts the result into its persisted form.
func (r *Result) Record(scenario string, impls []string) *database.RunRecord {
	hashes := r.TxHashes()
	hexHashes := make([]string, 0, len(hashes))
	for _, h := range hashes {
		hexHashes = append(hexHashes, h.Hex())
	}
	return &database.RunRecord{
		RunID:         r.RunID,
		Scenario:      scenario,
		Clients:       r.Clients,
		Impls:         impls,
		Start:         r.Start,
		Elapsed:       r.Elapsed,
		Offset:        r.Offset,
		Successful:    r.Successful(),
		TotalTxsTried: r.TotalTxsTried(),
		MaxTotalTxs:   r.MaxTotalTxs,
		Agreeing:      r.Agreeing,
		TxHashes:      hexHashes,
	}
}
