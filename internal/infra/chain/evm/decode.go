package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"reflect"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/vietddude/payroll/internal/core/domain"
)

// ErrDecode is returned when a contract answer does not have the expected shape.
var ErrDecode = errors.New("unexpected contract response")

// viewRaw runs a read call and returns the undecoded answer.
func (c *Client) viewRaw(ctx context.Context, contract abi.ABI, to, method string, args ...any) ([]byte, error) {
	addr, err := toAddress(to)
	if err != nil {
		return nil, err
	}
	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	out, err := c.CallContract(ctx, addr.Hex(), data)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s on %s returned no data", ErrDecode, method, to)
	}
	return out, nil
}

// view packs a read call, runs it with eth_call and unpacks the outputs.
func (c *Client) view(ctx context.Context, contract abi.ABI, to, method string, args ...any) ([]any, error) {
	out, err := c.viewRaw(ctx, contract, to, method, args...)
	if err != nil {
		return nil, err
	}
	vals, err := contract.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, method, err)
	}
	return vals, nil
}

// transact packs a write call and submits it as a signed transaction.
func (c *Client) transact(
	ctx context.Context,
	contract abi.ABI,
	to, method string,
	value *big.Int,
	args ...any,
) (string, error) {
	addr, err := toAddress(to)
	if err != nil {
		return "", err
	}
	data, err := contract.Pack(method, args...)
	if err != nil {
		return "", fmt.Errorf("pack %s: %w", method, err)
	}
	return c.SendTransaction(ctx, addr.Hex(), data, value)
}

// valueAt returns output i as T.
func valueAt[T any](vals []any, i int, field string) (T, error) {
	var zero T
	if i >= len(vals) {
		return zero, fmt.Errorf("%w: missing %s", ErrDecode, field)
	}
	v, ok := vals[i].(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s has type %T, want %T", ErrDecode, field, vals[i], zero)
	}
	return v, nil
}

func uint64At(vals []any, i int, field string) (uint64, error) {
	v, err := valueAt[*big.Int](vals, i, field)
	if err != nil {
		return 0, err
	}
	if v == nil || !v.IsUint64() {
		return 0, fmt.Errorf("%w: %s out of range", ErrDecode, field)
	}
	return v.Uint64(), nil
}

func idsAt(vals []any, i int, field string) ([]uint64, error) {
	raw, err := valueAt[[]*big.Int](vals, i, field)
	if err != nil {
		return nil, err
	}
	ids := make([]uint64, len(raw))
	for j, v := range raw {
		if v == nil || !v.IsUint64() {
			return nil, fmt.Errorf("%w: %s[%d] out of range", ErrDecode, field, j)
		}
		ids[j] = v.Uint64()
	}
	return ids, nil
}

// structFields flattens a decoded tuple into its members, in order.
func structFields(v any) ([]any, bool) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Struct {
		return nil, false
	}
	fields := make([]any, rv.NumField())
	for i := range fields {
		fields[i] = rv.Field(i).Interface()
	}
	return fields, true
}

func toAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, domain.NewError(domain.KindValidation, "", fmt.Sprintf("invalid address %q", s), nil)
	}
	return common.HexToAddress(s), nil
}

func toAddresses(ss []string) ([]common.Address, error) {
	out := make([]common.Address, len(ss))
	for i, s := range ss {
		a, err := toAddress(s)
		if err != nil {
			return nil, err
		}
		out[i] = a
	}
	return out, nil
}

func toBigs(ids []uint64) []*big.Int {
	out := make([]*big.Int, len(ids))
	for i, id := range ids {
		out[i] = new(big.Int).SetUint64(id)
	}
	return out
}
