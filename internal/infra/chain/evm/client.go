// Package evm talks to EVM chains: JSON-RPC reads, locally signed writes,
// receipt polling and typed adapters for the ERC-20, bulk transfer, stream
// and invoices contracts.
package evm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/vietddude/payroll/internal/core/domain"
	"github.com/vietddude/payroll/internal/infra/rpc"
)

// Caller is the JSON-RPC surface the client needs. *rpc.Client satisfies it.
type Caller interface {
	Call(ctx context.Context, out any, method string, params ...any) error
}

const (
	defaultPollInterval = 2 * time.Second
	// gasHeadroom scales eth_estimateGas by 6/5.
	gasHeadroomNum = 6
	gasHeadroomDen = 5
)

// Config tunes a client.
type Config struct {
	PollInterval time.Duration
}

// Client is one wallet on one chain.
type Client struct {
	rpc          Caller
	signer       *Signer
	pollInterval time.Duration
	log          *slog.Logger

	// sendMu serializes nonce selection and submission.
	sendMu  sync.Mutex
	chainMu sync.Mutex
	chainID *big.Int
}

// NewClient creates a client. signer may be nil for read-only use.
func NewClient(caller Caller, signer *Signer, cfg Config) *Client {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	return &Client{
		rpc:          caller,
		signer:       signer,
		pollInterval: cfg.PollInterval,
		log:          slog.Default().With("component", "evm"),
	}
}

// Account returns the wallet address, or "" without a signer.
func (c *Client) Account() string {
	if c.signer == nil {
		return ""
	}
	return c.signer.Address().Hex()
}

// ChainID returns the chain id reported by the node.
func (c *Client) ChainID(ctx context.Context) (domain.ChainID, error) {
	id, err := c.chainIDBig(ctx)
	if err != nil {
		return "", err
	}
	return domain.ChainID(id.String()), nil
}

func (c *Client) chainIDBig(ctx context.Context) (*big.Int, error) {
	c.chainMu.Lock()
	defer c.chainMu.Unlock()
	if c.chainID != nil {
		return c.chainID, nil
	}
	var id hexutil.Big
	if err := c.rpc.Call(ctx, &id, "eth_chainId"); err != nil {
		return nil, err
	}
	c.chainID = id.ToInt()
	return c.chainID, nil
}

type callMsg struct {
	From  *common.Address `json:"from,omitempty"`
	To    string          `json:"to"`
	Data  hexutil.Bytes   `json:"data,omitempty"`
	Value *hexutil.Big    `json:"value,omitempty"`
}

// CallContract runs eth_call against the latest block.
func (c *Client) CallContract(ctx context.Context, to string, data []byte) ([]byte, error) {
	var out hexutil.Bytes
	if err := c.rpc.Call(ctx, &out, "eth_call", callMsg{To: to, Data: data}, "latest"); err != nil {
		return nil, err
	}
	return out, nil
}

// SendTransaction signs and submits a call to `to` and returns the tx hash.
// EIP-1559 fees are used when the latest block carries a base fee.
func (c *Client) SendTransaction(ctx context.Context, to string, data []byte, value *big.Int) (string, error) {
	if c.signer == nil {
		return "", ErrNoSigner
	}
	if value == nil {
		value = new(big.Int)
	}
	chainID, err := c.chainIDBig(ctx)
	if err != nil {
		return "", err
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	from := c.signer.Address()
	toAddr := common.HexToAddress(to)

	var nonce hexutil.Uint64
	if err := c.rpc.Call(ctx, &nonce, "eth_getTransactionCount", from, "pending"); err != nil {
		return "", err
	}

	var estimate hexutil.Uint64
	msg := callMsg{From: &from, To: toAddr.Hex(), Data: data, Value: (*hexutil.Big)(value)}
	if err := c.rpc.Call(ctx, &estimate, "eth_estimateGas", msg); err != nil {
		return "", err
	}
	gas := uint64(estimate) * gasHeadroomNum / gasHeadroomDen

	txData, err := c.feeFields(ctx, chainID, uint64(nonce), gas, toAddr, value, data)
	if err != nil {
		return "", err
	}

	signed, err := c.signer.Sign(types.NewTx(txData), chainID)
	if err != nil {
		return "", fmt.Errorf("sign transaction: %w", err)
	}
	raw, err := signed.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("encode transaction: %w", err)
	}

	hash := signed.Hash().Hex()
	if err := c.rpc.Call(ctx, nil, "eth_sendRawTransaction", hexutil.Encode(raw)); err != nil {
		// A failover retry may reach a node that already has it.
		if strings.Contains(strings.ToLower(err.Error()), "already known") {
			return hash, nil
		}
		return "", err
	}

	c.log.Debug("Transaction sent", "tx", hash, "to", toAddr.Hex(), "nonce", uint64(nonce), "gas", gas, "value", value.String())
	return hash, nil
}

type latestBlock struct {
	BaseFee *hexutil.Big `json:"baseFeePerGas"`
}

func (c *Client) feeFields(
	ctx context.Context,
	chainID *big.Int,
	nonce, gas uint64,
	to common.Address,
	value *big.Int,
	data []byte,
) (types.TxData, error) {
	var head latestBlock
	if err := c.rpc.Call(ctx, &head, "eth_getBlockByNumber", "latest", false); err != nil {
		return nil, err
	}

	if head.BaseFee != nil {
		var tip hexutil.Big
		if err := c.rpc.Call(ctx, &tip, "eth_maxPriorityFeePerGas"); err != nil {
			return nil, err
		}
		feeCap := new(big.Int).Mul(head.BaseFee.ToInt(), big.NewInt(2))
		feeCap.Add(feeCap, tip.ToInt())
		return &types.DynamicFeeTx{
			ChainID:   chainID,
			Nonce:     nonce,
			GasTipCap: tip.ToInt(),
			GasFeeCap: feeCap,
			Gas:       gas,
			To:        &to,
			Value:     value,
			Data:      data,
		}, nil
	}

	var price hexutil.Big
	if err := c.rpc.Call(ctx, &price, "eth_gasPrice"); err != nil {
		return nil, err
	}
	return &types.LegacyTx{
		Nonce:    nonce,
		GasPrice: price.ToInt(),
		Gas:      gas,
		To:       &to,
		Value:    value,
		Data:     data,
	}, nil
}

type rpcReceipt struct {
	TransactionHash string          `json:"transactionHash"`
	BlockNumber     hexutil.Uint64  `json:"blockNumber"`
	GasUsed         hexutil.Uint64  `json:"gasUsed"`
	Status          *hexutil.Uint64 `json:"status"`
}

// WaitReceipt polls eth_getTransactionReceipt until the transaction is mined
// or ctx ends. A receipt without a status field is an ErrDecode, not a revert.
func (c *Client) WaitReceipt(ctx context.Context, txHash string) (*domain.Receipt, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		var r rpcReceipt
		err := c.rpc.Call(ctx, &r, "eth_getTransactionReceipt", txHash)
		switch {
		case err == nil:
			if r.Status == nil {
				return nil, fmt.Errorf("%w: receipt for %s has no status", ErrDecode, txHash)
			}
			status := domain.ReceiptStatusFailed
			if *r.Status == 1 {
				status = domain.ReceiptStatusSuccess
			}
			return &domain.Receipt{
				TxHash:      txHash,
				BlockNumber: uint64(r.BlockNumber),
				GasUsed:     uint64(r.GasUsed),
				Status:      status,
			}, nil
		case errors.Is(err, rpc.ErrNullResult):
			// not mined yet
		case ctx.Err() != nil:
			return nil, ctx.Err()
		default:
			c.log.Warn("Receipt poll failed", "tx", txHash, "error", err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
