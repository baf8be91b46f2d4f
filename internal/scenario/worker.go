package scenario

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"slices"
	"time"

	"github.com/mavleo96/tx-spam/internal/crypto"
	"github.com/mavleo96/tx-spam/internal/events"
	"github.com/mavleo96/tx-spam/internal/models"
	"github.com/mavleo96/tx-spam/internal/rpc"
	log "github.com/sirupsen/logrus"
)

// pickRecipient draws a recipient index uniformly from [0, n) and moves to the
// next client, wrapping around, if the draw landed on the sender.
func pickRecipient(intn func(int) int, senderIdx, n int) (int, error) {
	if n < 2 {
		return 0, errors.New("need at least 2 clients to pick a recipient")
	}
	idx := intn(n)
	if idx == senderIdx {
		idx = (idx + 1) % n
	}
	return idx, nil
}

// clientRoutine sends up to txs_per_client-1 transfers from the coinbase of sender
// to the coinbase of one randomly chosen other client.
func (d *Driver) clientRoutine(ctx context.Context, sender *models.Client, clientIDs []string, result *Result) error {
	p := d.cfg.Params

	senderIdx := slices.Index(clientIDs, sender.ID)
	if senderIdx < 0 {
		return fmt.Errorf("%s is not in the client list", sender.ID)
	}
	recipientIdx, err := pickRecipient(d.intn, senderIdx, len(clientIDs))
	if err != nil {
		return err
	}
	recipient := clientIDs[recipientIdx]
	to, err := crypto.CoinbaseAddress(recipient)
	if err != nil {
		return err
	}

	node, err := rpc.Connect(ctx, sender.ID, sender.Endpoint)
	if err != nil {
		return err
	}
	defer node.Close()

	from, err := node.Coinbase(ctx)
	if err != nil {
		return fmt.Errorf("coinbase: %w", err)
	}
	balance, err := node.Balance(ctx, from)
	if err != nil {
		return fmt.Errorf("balance of %s: %w", from.Hex(), err)
	}
	log.Debugf("[Worker] %s sending from %s to %s (%s), balance %s", sender.ID, from.Hex(), recipient, to.Hex(), balance)

	value := big.NewInt(p.Value)
	for i := 1; i < p.TxsPerClient; i++ {
		// Balance is tracked locally and may drift if a transfer silently fails
		if value.Cmp(balance) >= 0 {
			log.Infof("[Worker] %s stopping after %d transfers, balance %s too low", sender.ID, i-1, balance)
			return nil
		}
		result.tried()
		balance.Sub(balance, value)
		attempt := d.sendTx(ctx, node, models.TxAttempt{
			ClientID: sender.ID,
			Sender:   from,
			To:       to,
			Value:    p.Value,
		})
		if attempt.Success {
			result.accepted(attempt.Hash)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.TxInterval.Std()):
		}
	}
	return nil
}

// sendTx submits one transfer and records whether the client accepted it.
func (d *Driver) sendTx(ctx context.Context, node *rpc.Client, attempt models.TxAttempt) models.TxAttempt {
	d.events.LogScenario(events.SendingTx, false, events.Fields{
		"client": attempt.ClientID,
		"sender": attempt.Sender.Hex(),
		"to":     attempt.To.Hex(),
		"value":  attempt.Value,
	})
	hash, err := node.Transact(ctx, attempt.Sender, attempt.To, big.NewInt(attempt.Value))
	if err != nil {
		log.Warnf("[Worker] %s: %s, %v", attempt.ClientID, attempt, err)
		d.events.LogScenario(events.SendingTxDone, false, events.Fields{
			"client": attempt.ClientID,
			"result": "",
			"error":  err.Error(),
		})
		return attempt
	}
	attempt.Hash = hash
	attempt.Success = true
	d.events.LogScenario(events.SendingTxDone, false, events.Fields{
		"client": attempt.ClientID,
		"result": hash.Hex(),
	})
	return attempt
}
