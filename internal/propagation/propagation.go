package propagation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mavleo96/tx-spam/internal/database"
	"github.com/mavleo96/tx-spam/internal/events"
	"github.com/mavleo96/tx-spam/internal/models"
	"github.com/mavleo96/tx-spam/internal/rpc"
	log "github.com/sirupsen/logrus"
)

// Checker computes how many clients observed the transactions of a scenario.
type Checker struct {
	journal  *events.Journal
	scenario string
	now      func() time.Time
}

// NewChecker creates a checker reading sent transactions from the journal.
func NewChecker(journal *events.Journal, scenario string) *Checker {
	return &Checker{journal: journal, scenario: scenario, now: time.Now}
}

// SentTransactions returns the hashes of transfers that clients accepted
// within the last offset.
func (c *Checker) SentTransactions(offset time.Duration) ([]common.Hash, error) {
	since := c.now().Add(-offset)
	entries, err := c.journal.Since(since, c.scenario, events.SendingTxDone)
	if err != nil {
		return nil, err
	}
	hashes := make([]common.Hash, 0, len(entries))
	for _, e := range entries {
		result, ok := e.Fields["result"].(string)
		if !ok || result == "" {
			continue
		}
		hashes = append(hashes, common.HexToHash(result))
	}
	return hashes, nil
}

// TxPropagation returns the number of clients that observed every transaction
// sent within the last offset.
func (c *Checker) TxPropagation(ctx context.Context, clients []*models.Client, offset time.Duration) (int, error) {
	hashes, err := c.SentTransactions(offset)
	if err != nil {
		return 0, err
	}
	return Observers(ctx, clients, hashes), nil
}

// RunPropagation returns the number of clients that currently know every
// transfer accepted during a stored run.
func RunPropagation(ctx context.Context, clients []*models.Client, record *database.RunRecord) int {
	hashes := make([]common.Hash, 0, len(record.TxHashes))
	for _, h := range record.TxHashes {
		hashes = append(hashes, common.HexToHash(h))
	}
	return Observers(ctx, clients, hashes)
}

// Observers queries every client concurrently and returns how many of them know
// all hashes. With no hashes no client can be shown to have received a transaction.
func Observers(ctx context.Context, clients []*models.Client, hashes []common.Hash) int {
	if len(hashes) == 0 {
		log.Warnf("[Propagation] No transactions to look for")
		return 0
	}

	var mutex sync.Mutex
	agreeing := 0
	wg := sync.WaitGroup{}
	for _, client := range clients {
		wg.Go(func() {
			seen, err := observedAll(ctx, client, hashes)
			if err != nil {
				log.Warnf("[Propagation] %s: %v", client.ID, err)
				return
			}
			if !seen {
				return
			}
			mutex.Lock()
			agreeing++
			mutex.Unlock()
		})
	}
	wg.Wait()
	log.Infof("[Propagation] %d of %d clients observed %d transactions", agreeing, len(clients), len(hashes))
	return agreeing
}

func observedAll(ctx context.Context, client *models.Client, hashes []common.Hash) (bool, error) {
	node, err := rpc.Connect(ctx, client.ID, client.Endpoint)
	if err != nil {
		return false, err
	}
	defer node.Close()

	for _, hash := range hashes {
		known, err := node.HasTransaction(ctx, hash)
		if err != nil {
			return false, err
		}
		if !known {
			log.Debugf("[Propagation] %s has not seen %s", client.ID, hash.Hex())
			return false, nil
		}
	}
	return true, nil
}

// Threshold returns the minimum number of agreeing clients, truncated toward zero.
func Threshold(clientCount int, ratio float64) int {
	return int(float64(clientCount) * ratio)
}

// Assert fails when fewer than ratio of clientCount clients observed the transactions.
func Assert(observed, clientCount int, ratio float64) error {
	if observed >= Threshold(clientCount, ratio) {
		return nil
	}
	return fmt.Errorf("only %d (of %d) clients received a transaction, need %d", observed, clientCount, Threshold(clientCount, ratio))
}
