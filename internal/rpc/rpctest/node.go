// Package rpctest runs in-process JSON-RPC clients for tests.
package rpctest

import (
	"context"
	"encoding/binary"
	"errors"
	"math/big"
	"net"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/mavleo96/tx-spam/internal/models"
)

// SentTx is a transfer accepted by a fake node.
type SentTx struct {
	From  common.Address
	To    common.Address
	Value *big.Int
	Hash  common.Hash
}

// Network is a set of fake nodes that gossip accepted transactions to each other.
type Network struct {
	mutex sync.Mutex
	nodes []*Node
}

// NewNetwork creates an empty network.
func NewNetwork() *Network {
	return &Network{}
}

// Node is a fake client serving eth_* methods over HTTP.
type Node struct {
	ID       string
	Coinbase common.Address
	Server   *httptest.Server

	network   *Network
	rpcServer *gethrpc.Server

	mutex    sync.Mutex
	balance  *big.Int
	height   uint64
	nonce    uint64
	known    map[common.Hash]bool
	sent     []SentTx
	calls    map[string]int
	failSend bool
	hangSend bool
	isolated bool
}

// AddNode starts a fake node with the given coinbase and balance.
// The server is closed when the test finishes.
func (n *Network) AddNode(t testing.TB, id string, coinbase common.Address, balance int64) *Node {
	t.Helper()
	node := &Node{
		ID:       id,
		Coinbase: coinbase,
		network:  n,
		balance:  big.NewInt(balance),
		known:    make(map[common.Hash]bool),
		calls:    make(map[string]int),
	}
	server := gethrpc.NewServer()
	if err := server.RegisterName("eth", &ethService{node: node}); err != nil {
		t.Fatalf("register eth service: %v", err)
	}
	node.rpcServer = server
	node.Server = httptest.NewServer(server)
	t.Cleanup(node.Stop)

	n.mutex.Lock()
	n.nodes = append(n.nodes, node)
	n.mutex.Unlock()
	return node
}

// Nodes returns the nodes in the order they were added.
func (n *Network) Nodes() []*Node {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	nodes := make([]*Node, len(n.nodes))
	copy(nodes, n.nodes)
	return nodes
}

// Entries returns inventory entries pointing at the fake nodes.
func (n *Network) Entries(t testing.TB) []models.ClientEntry {
	t.Helper()
	entries := make([]models.ClientEntry, 0)
	for _, node := range n.Nodes() {
		entries = append(entries, node.Entry(t))
	}
	return entries
}

// Entry returns the inventory entry of the node.
func (node *Node) Entry(t testing.TB) models.ClientEntry {
	t.Helper()
	u, err := url.Parse(node.Server.URL)
	if err != nil {
		t.Fatalf("parse server url: %v", err)
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		t.Fatalf("split server host: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parse server port: %v", err)
	}
	return models.ClientEntry{ID: node.ID, Host: host, Port: port}
}

// Stop shuts the node down. Later requests fail with a refused connection.
func (node *Node) Stop() {
	node.Server.Close()
	node.rpcServer.Stop()
}

// SetHeight sets the block height reported by eth_blockNumber.
func (node *Node) SetHeight(height uint64) {
	node.mutex.Lock()
	defer node.mutex.Unlock()
	node.height = height
}

// SetFailSend makes eth_sendTransaction return an error.
func (node *Node) SetFailSend(fail bool) {
	node.mutex.Lock()
	defer node.mutex.Unlock()
	node.failSend = fail
}

// SetHangSend makes eth_sendTransaction block until the request is cancelled.
func (node *Node) SetHangSend(hang bool) {
	node.mutex.Lock()
	defer node.mutex.Unlock()
	node.hangSend = hang
}

// SetIsolated stops the node from receiving transactions gossiped by other nodes.
func (node *Node) SetIsolated(isolated bool) {
	node.mutex.Lock()
	defer node.mutex.Unlock()
	node.isolated = isolated
}

// Learn marks a transaction as known to the node.
func (node *Node) Learn(hash common.Hash) {
	node.mutex.Lock()
	defer node.mutex.Unlock()
	node.known[hash] = true
}

// Knows reports whether the node has seen the transaction.
func (node *Node) Knows(hash common.Hash) bool {
	node.mutex.Lock()
	defer node.mutex.Unlock()
	return node.known[hash]
}

// Sent returns the transfers accepted by this node.
func (node *Node) Sent() []SentTx {
	node.mutex.Lock()
	defer node.mutex.Unlock()
	sent := make([]SentTx, len(node.sent))
	copy(sent, node.sent)
	return sent
}

// Calls returns how many times method was called on the node.
func (node *Node) Calls(method string) int {
	node.mutex.Lock()
	defer node.mutex.Unlock()
	return node.calls[method]
}

// Balance returns the current coinbase balance.
func (node *Node) Balance() *big.Int {
	node.mutex.Lock()
	defer node.mutex.Unlock()
	return new(big.Int).Set(node.balance)
}

func (node *Node) count(method string) {
	node.mutex.Lock()
	defer node.mutex.Unlock()
	node.calls[method]++
}

// gossip hands an accepted transaction to every other non-isolated node.
func (n *Network) gossip(from *Node, hash common.Hash) {
	for _, node := range n.Nodes() {
		if node == from {
			continue
		}
		node.mutex.Lock()
		if !node.isolated {
			node.known[hash] = true
		}
		node.mutex.Unlock()
	}
}

// ethService implements the subset of the eth namespace the scenario uses.
type ethService struct {
	node *Node
}

func (s *ethService) Coinbase() (common.Address, error) {
	s.node.count("eth_coinbase")
	return s.node.Coinbase, nil
}

func (s *ethService) GetBalance(addr common.Address, block string) (*hexutil.Big, error) {
	s.node.count("eth_getBalance")
	s.node.mutex.Lock()
	defer s.node.mutex.Unlock()
	if addr != s.node.Coinbase {
		return (*hexutil.Big)(big.NewInt(0)), nil
	}
	return (*hexutil.Big)(new(big.Int).Set(s.node.balance)), nil
}

func (s *ethService) BlockNumber() hexutil.Uint64 {
	s.node.count("eth_blockNumber")
	s.node.mutex.Lock()
	defer s.node.mutex.Unlock()
	return hexutil.Uint64(s.node.height)
}

type sendTxArgs struct {
	From  common.Address  `json:"from"`
	To    *common.Address `json:"to"`
	Value *hexutil.Big    `json:"value"`
}

func (s *ethService) SendTransaction(ctx context.Context, args sendTxArgs) (common.Hash, error) {
	s.node.count("eth_sendTransaction")
	s.node.mutex.Lock()
	hang, fail := s.node.hangSend, s.node.failSend
	s.node.mutex.Unlock()

	if hang {
		<-ctx.Done()
		return common.Hash{}, ctx.Err()
	}
	if fail {
		return common.Hash{}, errors.New("transaction rejected")
	}
	if args.To == nil || args.Value == nil {
		return common.Hash{}, errors.New("missing to or value")
	}
	if args.From != s.node.Coinbase {
		return common.Hash{}, errors.New("unknown account")
	}

	value := (*big.Int)(args.Value)
	s.node.mutex.Lock()
	if s.node.balance.Cmp(value) < 0 {
		s.node.mutex.Unlock()
		return common.Hash{}, errors.New("insufficient funds")
	}
	s.node.balance.Sub(s.node.balance, value)
	nonce := make([]byte, 8)
	binary.BigEndian.PutUint64(nonce, s.node.nonce)
	s.node.nonce++
	hash := crypto.Keccak256Hash(args.From.Bytes(), args.To.Bytes(), value.Bytes(), nonce)
	s.node.known[hash] = true
	s.node.sent = append(s.node.sent, SentTx{From: args.From, To: *args.To, Value: new(big.Int).Set(value), Hash: hash})
	s.node.mutex.Unlock()

	s.node.network.gossip(s.node, hash)
	return hash, nil
}

func (s *ethService) GetTransactionByHash(hash common.Hash) (map[string]interface{}, error) {
	s.node.count("eth_getTransactionByHash")
	if !s.node.Knows(hash) {
		return nil, nil
	}
	return map[string]interface{}{
		"hash": hash,
	}, nil
}
