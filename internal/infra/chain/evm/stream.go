package evm

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vietddude/payroll/internal/core/domain"
)

// RecipientStreams returns the ids of every stream paying recipient.
func (c *Client) RecipientStreams(ctx context.Context, contract, recipient string) ([]uint64, error) {
	r, err := toAddress(recipient)
	if err != nil {
		return nil, err
	}
	vals, err := c.view(ctx, streamContract, contract, "getRecipientStreams", r)
	if err != nil {
		return nil, err
	}
	return idsAt(vals, 0, "stream ids")
}

// GetStream reads one stream. ClaimableAmount is left nil.
func (c *Client) GetStream(ctx context.Context, contract string, id uint64) (domain.Stream, error) {
	vals, err := c.view(ctx, streamContract, contract, "getStream", new(big.Int).SetUint64(id))
	if err != nil {
		return domain.Stream{}, err
	}
	return decodeStream(id, vals)
}

func decodeStream(id uint64, vals []any) (domain.Stream, error) {
	sender, err := valueAt[common.Address](vals, 0, "sender")
	if err != nil {
		return domain.Stream{}, err
	}
	recipient, err := valueAt[common.Address](vals, 1, "recipient")
	if err != nil {
		return domain.Stream{}, err
	}
	token, err := valueAt[common.Address](vals, 2, "token")
	if err != nil {
		return domain.Stream{}, err
	}
	total, err := valueAt[*big.Int](vals, 3, "totalAmount")
	if err != nil {
		return domain.Stream{}, err
	}
	claimed, err := valueAt[*big.Int](vals, 4, "claimedAmount")
	if err != nil {
		return domain.Stream{}, err
	}
	start, err := uint64At(vals, 5, "startTime")
	if err != nil {
		return domain.Stream{}, err
	}
	end, err := uint64At(vals, 6, "endTime")
	if err != nil {
		return domain.Stream{}, err
	}
	active, err := valueAt[bool](vals, 7, "active")
	if err != nil {
		return domain.Stream{}, err
	}
	if sender == (common.Address{}) && total.Sign() == 0 {
		return domain.Stream{}, fmt.Errorf("%w: stream %d does not exist", ErrDecode, id)
	}
	return domain.Stream{
		ID:            id,
		Sender:        sender.Hex(),
		Recipient:     recipient.Hex(),
		Token:         token.Hex(),
		TotalAmount:   total,
		ClaimedAmount: claimed,
		StartTime:     start,
		EndTime:       end,
		Active:        active,
	}, nil
}

// ClaimableAmount reads the vested, unclaimed balance of a stream.
func (c *Client) ClaimableAmount(ctx context.Context, contract string, id uint64) (*big.Int, error) {
	vals, err := c.view(ctx, streamContract, contract, "getClaimableAmount", new(big.Int).SetUint64(id))
	if err != nil {
		return nil, err
	}
	return valueAt[*big.Int](vals, 0, "claimable")
}

// ClaimStream submits claimStream(id).
func (c *Client) ClaimStream(ctx context.Context, contract string, id uint64) (string, error) {
	return c.transact(ctx, streamContract, contract, "claimStream", nil, new(big.Int).SetUint64(id))
}

// ClaimMultipleStreams submits claimMultipleStreams(ids).
func (c *Client) ClaimMultipleStreams(ctx context.Context, contract string, ids []uint64) (string, error) {
	return c.transact(ctx, streamContract, contract, "claimMultipleStreams", nil, toBigs(ids))
}

// CreateBulkStreams submits createBulkStreams(token, recipients, amounts, durations).
func (c *Client) CreateBulkStreams(
	ctx context.Context,
	contract, token string,
	recipients []string,
	amounts []*big.Int,
	durations []uint64,
	value *big.Int,
) (string, error) {
	if len(recipients) != len(amounts) || len(recipients) != len(durations) {
		return "", fmt.Errorf("create streams: mismatched lengths %d/%d/%d", len(recipients), len(amounts), len(durations))
	}
	tokenAddr, err := toAddress(token)
	if err != nil {
		return "", err
	}
	addrs, err := toAddresses(recipients)
	if err != nil {
		return "", err
	}
	return c.transact(ctx, streamContract, contract, "createBulkStreams", value, tokenAddr, addrs, amounts, toBigs(durations))
}
