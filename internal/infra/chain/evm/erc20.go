package evm

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/vietddude/payroll/internal/core/domain"
)

// Allowance reads allowance(owner, spender) on token.
func (c *Client) Allowance(ctx context.Context, token, owner, spender string) (*big.Int, error) {
	o, err := toAddress(owner)
	if err != nil {
		return nil, err
	}
	s, err := toAddress(spender)
	if err != nil {
		return nil, err
	}
	vals, err := c.view(ctx, erc20Contract, token, "allowance", o, s)
	if err != nil {
		return nil, err
	}
	return valueAt[*big.Int](vals, 0, "allowance")
}

// Approve submits approve(spender, amount) on token.
func (c *Client) Approve(ctx context.Context, token, spender string, amount *big.Int) (string, error) {
	s, err := toAddress(spender)
	if err != nil {
		return "", err
	}
	return c.transact(ctx, erc20Contract, token, "approve", nil, s, amount)
}

// BalanceOf returns the token balance of account. The native sentinel reads
// the account's coin balance instead.
func (c *Client) BalanceOf(ctx context.Context, token, account string) (*big.Int, error) {
	a, err := toAddress(account)
	if err != nil {
		return nil, err
	}
	if domain.IsNativeAddress(token) {
		return c.nativeBalance(ctx, a)
	}
	vals, err := c.view(ctx, erc20Contract, token, "balanceOf", a)
	if err != nil {
		return nil, err
	}
	return valueAt[*big.Int](vals, 0, "balance")
}

// TokenInfo reads symbol and decimals of an ERC-20 contract.
func (c *Client) TokenInfo(ctx context.Context, token string) (domain.Token, error) {
	vals, err := c.view(ctx, erc20Contract, token, "symbol")
	if err != nil {
		return domain.Token{}, err
	}
	symbol, err := valueAt[string](vals, 0, "symbol")
	if err != nil {
		return domain.Token{}, err
	}
	vals, err = c.view(ctx, erc20Contract, token, "decimals")
	if err != nil {
		return domain.Token{}, err
	}
	decimals, err := valueAt[uint8](vals, 0, "decimals")
	if err != nil {
		return domain.Token{}, err
	}
	return domain.Token{Symbol: symbol, Address: common.HexToAddress(token).Hex(), Decimals: decimals}, nil
}

func (c *Client) nativeBalance(ctx context.Context, account common.Address) (*big.Int, error) {
	var bal hexutil.Big
	if err := c.rpc.Call(ctx, &bal, "eth_getBalance", account, "latest"); err != nil {
		return nil, err
	}
	return bal.ToInt(), nil
}
