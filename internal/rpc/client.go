package rpc

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
)

// ErrNoResult is returned when a client answers a transfer with an empty hash.
var ErrNoResult = errors.New("client returned no transaction hash")

// Client talks to the JSON-RPC endpoint of one client under test.
type Client struct {
	ID       string
	Endpoint string
	rpc      *gethrpc.Client
}

// Connect creates a JSON-RPC client for the endpoint.
// HTTP connections are made lazily on the first call.
func Connect(ctx context.Context, id, endpoint string) (*Client, error) {
	c, err := gethrpc.DialContext(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create rpc client for %s at %s: %w", id, endpoint, err)
	}
	return &Client{ID: id, Endpoint: endpoint, rpc: c}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() {
	c.rpc.Close()
}

// Coinbase returns the address the client mines to.
func (c *Client) Coinbase(ctx context.Context) (common.Address, error) {
	var addr common.Address
	if err := c.rpc.CallContext(ctx, &addr, "eth_coinbase"); err != nil {
		return common.Address{}, err
	}
	return addr, nil
}

// Balance returns the latest balance of addr.
func (c *Client) Balance(ctx context.Context, addr common.Address) (*big.Int, error) {
	var balance hexutil.Big
	if err := c.rpc.CallContext(ctx, &balance, "eth_getBalance", addr, "latest"); err != nil {
		return nil, err
	}
	return (*big.Int)(&balance), nil
}

// BlockNumber returns the height of the client's head block.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	var height hexutil.Uint64
	if err := c.rpc.CallContext(ctx, &height, "eth_blockNumber"); err != nil {
		return 0, err
	}
	return uint64(height), nil
}

// TransactArgs are the arguments of eth_sendTransaction.
type TransactArgs struct {
	From  common.Address  `json:"from"`
	To    *common.Address `json:"to"`
	Value *hexutil.Big    `json:"value"`
}

// Transact asks the client to sign and send a value transfer from sender.
// The sender must be an account unlocked on the client, normally its coinbase.
func (c *Client) Transact(ctx context.Context, sender, to common.Address, value *big.Int) (common.Hash, error) {
	var hash common.Hash
	args := TransactArgs{
		From:  sender,
		To:    &to,
		Value: (*hexutil.Big)(value),
	}
	if err := c.rpc.CallContext(ctx, &hash, "eth_sendTransaction", args); err != nil {
		return common.Hash{}, err
	}
	if hash == (common.Hash{}) {
		return common.Hash{}, ErrNoResult
	}
	return hash, nil
}

// HasTransaction reports whether the client knows the transaction, pending or mined.
func (c *Client) HasTransaction(ctx context.Context, hash common.Hash) (bool, error) {
	var tx map[string]interface{}
	if err := c.rpc.CallContext(ctx, &tx, "eth_getTransactionByHash", hash); err != nil {
		return false, err
	}
	return tx != nil, nil
}
