// Package chainclient wraps github.com/ethereum/go-ethereum/ethclient with
// the small surface the relayer actually needs: block/receipt/header
// fetches for proof construction, log filtering for the polling listener,
// and transaction submission for the submitter.
package chainclient

import (
	"context"
	"fmt"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// Client wraps an ethclient.Client with its resolved chain ID, mirroring
// the teacher's ethereum.Client but trimmed to the relayer's needs.
type Client struct {
	rpc     *ethclient.Client
	chainID *big.Int
	url     string
}

// Dial connects to url and resolves the remote chain ID.
func Dial(ctx context.Context, url string) (*Client, error) {
	rpc, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("chainclient: dial %s: %w", url, err)
	}

	chainID, err := rpc.ChainID(ctx)
	if err != nil {
		rpc.Close()
		return nil, fmt.Errorf("chainclient: fetch chain id from %s: %w", url, err)
	}

	return &Client{rpc: rpc, chainID: chainID, url: url}, nil
}

// ChainID returns the chain ID resolved at Dial time.
func (c *Client) ChainID() *big.Int { return c.chainID }

// URL returns the endpoint this client was dialed against.
func (c *Client) URL() string { return c.url }

// Raw returns the underlying ethclient, for callers (the submitter's
// bind.TransactOpts construction) that need the full surface.
func (c *Client) Raw() *ethclient.Client { return c.rpc }

// BlockNumber returns the current head block number.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	n, err := c.rpc.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("chainclient: block number: %w", err)
	}
	return n, nil
}

// HeaderByNumber fetches a block header. number == nil fetches the head.
func (c *Client) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	h, err := c.rpc.HeaderByNumber(ctx, number)
	if err != nil {
		return nil, fmt.Errorf("chainclient: header by number %v: %w", number, err)
	}
	return h, nil
}

// BlockByNumber fetches a full block, including its transaction list.
func (c *Client) BlockByNumber(ctx context.Context, number *big.Int) (*types.Block, error) {
	b, err := c.rpc.BlockByNumber(ctx, number)
	if err != nil {
		return nil, fmt.Errorf("chainclient: block by number %v: %w", number, err)
	}
	return b, nil
}

// TransactionReceipt fetches a single receipt by transaction hash.
func (c *Client) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	r, err := c.rpc.TransactionReceipt(ctx, txHash)
	if err != nil {
		return nil, fmt.Errorf("chainclient: receipt for %s: %w", txHash, err)
	}
	return r, nil
}

// BlockReceipts fetches every receipt for a block in transaction-index
// order via a single batched call. Falls back to one-by-one receipt
// fetches (grounded in the teacher's per-transaction retrieval pattern)
// when the endpoint does not support the batched eth_getBlockReceipts call.
func (c *Client) BlockReceipts(ctx context.Context, number *big.Int) ([]*types.Receipt, error) {
	receipts, err := c.rpc.BlockReceipts(ctx, blockNumberOrHash(number))
	if err == nil {
		return receipts, nil
	}

	block, blkErr := c.BlockByNumber(ctx, number)
	if blkErr != nil {
		return nil, fmt.Errorf("chainclient: block receipts fallback, fetching block: %w", blkErr)
	}

	out := make([]*types.Receipt, 0, len(block.Transactions()))
	for _, tx := range block.Transactions() {
		r, rErr := c.TransactionReceipt(ctx, tx.Hash())
		if rErr != nil {
			return nil, fmt.Errorf("chainclient: block receipts fallback, tx %s: %w", tx.Hash(), rErr)
		}
		out = append(out, r)
	}
	return out, nil
}

// FilterLogs runs eth_getLogs for the given query.
func (c *Client) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	logs, err := c.rpc.FilterLogs(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("chainclient: filter logs: %w", err)
	}
	return logs, nil
}

// SuggestGasPrice returns the node's current suggested gas price.
func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	p, err := c.rpc.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("chainclient: suggest gas price: %w", err)
	}
	return p, nil
}

// PendingNonceAt returns the next nonce to use for address.
func (c *Client) PendingNonceAt(ctx context.Context, address common.Address) (uint64, error) {
	n, err := c.rpc.PendingNonceAt(ctx, address)
	if err != nil {
		return 0, fmt.Errorf("chainclient: pending nonce for %s: %w", address, err)
	}
	return n, nil
}

// SendTransaction broadcasts a signed transaction.
func (c *Client) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if err := c.rpc.SendTransaction(ctx, tx); err != nil {
		return fmt.Errorf("chainclient: send transaction %s: %w", tx.Hash(), err)
	}
	return nil
}

// WaitMined blocks until tx is mined or ctx is cancelled.
func (c *Client) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	r, err := bind.WaitMined(ctx, c.rpc, tx)
	if err != nil {
		return nil, fmt.Errorf("chainclient: wait mined %s: %w", tx.Hash(), err)
	}
	return r, nil
}

func blockNumberOrHash(number *big.Int) rpc.BlockNumberOrHash {
	if number == nil {
		return rpc.BlockNumberOrHashWithNumber(rpc.LatestBlockNumber)
	}
	return rpc.BlockNumberOrHashWithNumber(rpc.BlockNumber(number.Int64()))
}
