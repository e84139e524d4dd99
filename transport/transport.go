// Package transport defines the RPC transport abstraction the
// monitor polls through (spec.md §4.A / §6) and an ethclient-backed
// implementation.
package transport

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Transport is the consumed interface: an EVM view call against
// "latest" and the current block number. It never retries — the
// monitor owns retry policy.
type Transport interface {
	BlockNumber(ctx context.Context) (uint64, error)
	Call(ctx context.Context, to common.Address, data []byte) ([]byte, error)
}

// Failure wraps an underlying transport error, per spec.md §7's
// TransportFailure class.
type Failure struct {
	Op  string
	Err error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("transport: %s: %v", f.Op, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// EthClient adapts go-ethereum's ethclient to the Transport
// interface.
type EthClient struct {
	client *ethclient.Client
}

// Dial connects to an EVM JSON-RPC endpoint.
func Dial(rpcURL string) (*EthClient, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, &Failure{Op: "dial", Err: err}
	}
	return &EthClient{client: client}, nil
}

// NewEthClient wraps an already-constructed ethclient, e.g. one built
// against a custom rpc.Client for testing.
func NewEthClient(client *ethclient.Client) *EthClient {
	return &EthClient{client: client}
}

func (e *EthClient) BlockNumber(ctx context.Context) (uint64, error) {
	n, err := e.client.BlockNumber(ctx)
	if err != nil {
		return 0, &Failure{Op: "block_number", Err: err}
	}
	return n, nil
}

func (e *EthClient) Call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	msg := ethereum.CallMsg{To: &to, Data: data}
	out, err := e.client.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, &Failure{Op: "call", Err: err}
	}
	return out, nil
}

// SuggestGasPrice satisfies gasestimator.Transport for the L2-aware
// estimator.
func (e *EthClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	price, err := e.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, &Failure{Op: "suggest_gas_price", Err: err}
	}
	return price, nil
}
