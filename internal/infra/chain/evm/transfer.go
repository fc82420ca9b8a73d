package evm

import (
	"context"
	"fmt"
	"math/big"
)

// BulkTransfer submits bulkTransfer(token, recipients, amounts) to contract
// with value attached.
func (c *Client) BulkTransfer(
	ctx context.Context,
	contract, token string,
	recipients []string,
	amounts []*big.Int,
	value *big.Int,
) (string, error) {
	if len(recipients) != len(amounts) {
		return "", fmt.Errorf("bulk transfer: %d recipients but %d amounts", len(recipients), len(amounts))
	}
	tokenAddr, err := toAddress(token)
	if err != nil {
		return "", err
	}
	addrs, err := toAddresses(recipients)
	if err != nil {
		return "", err
	}
	return c.transact(ctx, bulkTransferProxy, contract, "bulkTransfer", value, tokenAddr, addrs, amounts)
}
