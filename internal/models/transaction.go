package models

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// TxAttempt records a single value transfer attempted by a worker.
type TxAttempt struct {
	ClientID string
	Sender   common.Address
	To       common.Address
	Value    int64
	Hash     common.Hash
	Success  bool
}

func (t TxAttempt) String() string {
	return fmt.Sprintf("(%s, %s, %d)", t.Sender.Hex(), t.To.Hex(), t.Value)
}
