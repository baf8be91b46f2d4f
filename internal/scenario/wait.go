package scenario

import (
	"context"
	"time"

	"github.com/mavleo96/tx-spam/internal/models"
	"github.com/mavleo96/tx-spam/internal/propagation"
	"github.com/mavleo96/tx-spam/internal/rpc"
	log "github.com/sirupsen/logrus"
)

// poll calls ready every interval until it returns true or ceiling has passed.
// It returns an error only if ctx is cancelled.
func poll(ctx context.Context, interval, ceiling time.Duration, ready func(context.Context) bool) (bool, error) {
	if interval <= 0 {
		interval = time.Second
	}
	waitCtx, cancel := context.WithTimeout(ctx, ceiling)
	defer cancel()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if ready(waitCtx) {
			return true, nil
		}
		select {
		case <-waitCtx.Done():
			return false, ctx.Err()
		case <-ticker.C:
		}
	}
}

// waitForMining waits until every client reports at least mined_blocks_target
// blocks, or until ceiling.
func (d *Driver) waitForMining(ctx context.Context, clients []*models.Client, ceiling time.Duration) error {
	target := uint64(d.cfg.Params.MinedBlocksTarget)

	nodes := make([]*rpc.Client, 0, len(clients))
	for _, client := range clients {
		node, err := rpc.Connect(ctx, client.ID, client.Endpoint)
		if err != nil {
			return err
		}
		defer node.Close()
		nodes = append(nodes, node)
	}

	mined, err := poll(ctx, d.cfg.Params.PollInterval.Std(), ceiling, func(ctx context.Context) bool {
		for _, node := range nodes {
			height, err := node.BlockNumber(ctx)
			if err != nil {
				log.Debugf("[Driver] %s block number: %v", node.ID, err)
				return false
			}
			if height < target {
				return false
			}
		}
		return true
	})
	if err != nil {
		return err
	}
	if mined {
		log.Infof("[Driver] All clients mined %d blocks", target)
	} else {
		log.Infof("[Driver] Mining delay of %s elapsed", ceiling)
	}
	return nil
}

// waitForConsensus waits until every client has observed every accepted
// transfer, or until ceiling. The last agreeing count is kept in result while
// the clients are still running.
func (d *Driver) waitForConsensus(ctx context.Context, clients []*models.Client, result *Result, ceiling time.Duration) error {
	hashes := result.TxHashes()
	agreed, err := poll(ctx, d.cfg.Params.PollInterval.Std(), ceiling, func(ctx context.Context) bool {
		if len(hashes) == 0 {
			return false
		}
		result.Agreeing = propagation.Observers(ctx, clients, hashes)
		return result.Agreeing == len(clients)
	})
	if err != nil {
		return err
	}
	if !agreed && len(hashes) > 0 {
		// The last poll may have been cut short by the ceiling.
		result.Agreeing = propagation.Observers(ctx, clients, hashes)
	}
	log.Infof("[Driver] %d of %d clients observed %d transactions", result.Agreeing, len(clients), len(hashes))
	return nil
}
