package scenario

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/mavleo96/tx-spam/internal/config"
	"github.com/mavleo96/tx-spam/internal/database"
	"github.com/mavleo96/tx-spam/internal/events"
	"github.com/mavleo96/tx-spam/internal/lifecycle"
	"github.com/mavleo96/tx-spam/internal/models"
	"github.com/rs/xid"
	log "github.com/sirupsen/logrus"
)

// Driver sequences one tx spam scenario run: start the clients, let them mine,
// spam them with transfers, wait for consensus and stop them again.
type Driver struct {
	cfg        *config.Config
	inventory  *models.Inventory
	controller lifecycle.Controller
	events     *events.Logger
	db         *database.Database

	intn func(n int) int
}

// NewDriver creates a driver. db may be nil, in which case runs are not persisted.
func NewDriver(cfg *config.Config, inventory *models.Inventory, controller lifecycle.Controller, logger *events.Logger, db *database.Database) *Driver {
	return &Driver{
		cfg:        cfg,
		inventory:  inventory,
		controller: controller,
		events:     logger,
		db:         db,
		intn:       rand.IntN,
	}
}

// Run executes the scenario once. With runClients false nothing is started and
// the result only carries the base offset.
func (d *Driver) Run(ctx context.Context, runClients bool) (*Result, error) {
	p := d.cfg.Params
	d.events.LogScenario(events.Started, true, nil)

	result := &Result{RunID: xid.New().String()}
	if !runClients {
		result.Offset = p.BaseOffset.Std()
		return result, nil
	}

	clients := d.inventory.Clients()
	result.Clients = d.inventory.IDs()
	result.MaxTotalTxs = int64(p.TxsPerClient) * int64(len(clients))

	d.events.LogScenario(events.StartingClients, true, nil)
	if err := d.controller.Start(ctx, clients, d.cfg.Impls); err != nil {
		return result, fmt.Errorf("failed to start clients: %w", err)
	}
	d.events.LogScenario(events.StartingClientsDone, true, nil)

	// Initial difficulty is high, so give every client the time to mine a few blocks
	delay := p.BlockTime.Std() * time.Duration(len(clients)) * time.Duration(p.MinedBlocksTarget)
	log.Infof("[Driver] Mining for up to %s", delay)
	d.events.LogScenario(events.Waiting, true, events.Fields{"delay": delay.Seconds()})
	if err := d.waitForMining(ctx, clients, delay); err != nil {
		return result, err
	}

	result.Start = time.Now()
	if err := d.runWorkers(ctx, clients, result); err != nil {
		return result, err
	}
	d.events.LogScenario(events.TxsResult, true, events.Fields{
		"successful":      result.Successful(),
		"total_txs_tried": result.TotalTxsTried(),
		"max_total_txs":   result.MaxTotalTxs,
	})

	consensusDelay := p.MaxTimeToReachConsensus.Std()
	d.events.LogScenario(events.Waiting, true, events.Fields{"delay": consensusDelay.Seconds()})
	if err := d.waitForConsensus(ctx, clients, result, consensusDelay); err != nil {
		return result, err
	}
	d.events.LogScenario(events.WaitingDone, true, events.Fields{"agreeing": result.Agreeing})

	var stopErr error
	if p.StopClientsAtScenarioEnd {
		d.events.LogScenario(events.StoppingClients, true, nil)
		stopErr = d.controller.Stop(ctx, clients, d.cfg.Impls)
		if stopErr == nil {
			d.events.LogScenario(events.StoppingClientsDone, true, nil)
		}
	}

	result.Elapsed = time.Since(result.Start)
	result.Offset = p.BaseOffset.Std() + result.Elapsed
	log.Infof("[Driver] Total offset: %s", result.Offset)
	d.events.LogScenario(events.Finished, true, events.Fields{
		"run_id": result.RunID,
		"offset": result.Offset.Seconds(),
	})
	d.saveRun(result)

	if stopErr != nil {
		return result, fmt.Errorf("failed to stop clients: %w", stopErr)
	}
	return result, nil
}

// runWorkers runs one clientRoutine per client and waits for all of them or
// the pool timeout. Worker errors are logged and never fail the run.
func (d *Driver) runWorkers(ctx context.Context, clients []*models.Client, result *Result) error {
	timeout := d.cfg.Params.PoolTimeout.Std()
	poolCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	clientIDs := d.inventory.IDs()
	wg := sync.WaitGroup{}
	for _, client := range clients {
		wg.Go(func() {
			defer func() {
				if r := recover(); r != nil {
					log.Errorf("[Driver] %s generated a panic: %v", client.ID, r)
				}
			}()
			if err := d.clientRoutine(poolCtx, client, clientIDs, result); err != nil {
				log.Errorf("[Driver] %s generated an error: %v", client.ID, err)
			}
		})
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Infof("[Driver] All %d workers finished", len(clients))
	case <-poolCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warnf("[Driver] Worker pool timed out after %s, cancelling unfinished workers", timeout)
	}
	return nil
}

func (d *Driver) saveRun(result *Result) {
	if d.db == nil {
		return
	}
	if err := d.db.SaveRun(result.Record(d.events.Scenario(), d.cfg.Impls)); err != nil {
		log.Warnf("[Driver] Failed to save run %s: %v", result.RunID, err)
		return
	}
	log.Infof("[Driver] Saved run %s", result.RunID)
}
