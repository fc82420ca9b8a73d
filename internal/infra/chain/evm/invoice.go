package evm

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vietddude/payroll/internal/core/domain"
)

// GetInvoice reads one invoice. ID and ChainID are filled by the caller.
func (c *Client) GetInvoice(ctx context.Context, contract string, id uint64) (domain.Invoice, error) {
	out, err := c.viewRaw(ctx, invoicesContract, contract, "getInvoice", new(big.Int).SetUint64(id))
	if err != nil {
		return domain.Invoice{}, err
	}
	vals, err := unpackInvoice(out)
	if err != nil {
		return domain.Invoice{}, err
	}
	return decodeInvoice(id, vals)
}

// unpackInvoice reads a getInvoice answer as one tuple, or as eight separate
// values when the tuple layout does not fit.
func unpackInvoice(out []byte) ([]any, error) {
	vals, err := invoicesContract.Unpack("getInvoice", out)
	if err == nil && len(vals) == 1 {
		if fields, ok := structFields(vals[0]); ok {
			return fields, nil
		}
	}
	vals, err = invoiceFlat.Unpack("getInvoice", out)
	if err != nil {
		return nil, fmt.Errorf("%w: getInvoice: %v", ErrDecode, err)
	}
	return vals, nil
}

func decodeInvoice(id uint64, vals []any) (domain.Invoice, error) {
	creator, err := valueAt[common.Address](vals, 0, "creator")
	if err != nil {
		return domain.Invoice{}, err
	}
	name, err := valueAt[string](vals, 1, "name")
	if err != nil {
		return domain.Invoice{}, err
	}
	details, err := valueAt[string](vals, 2, "details")
	if err != nil {
		return domain.Invoice{}, err
	}
	amount, err := valueAt[*big.Int](vals, 3, "amount")
	if err != nil {
		return domain.Invoice{}, err
	}
	paid, err := valueAt[bool](vals, 4, "paid")
	if err != nil {
		return domain.Invoice{}, err
	}
	payer, err := valueAt[common.Address](vals, 5, "payer")
	if err != nil {
		return domain.Invoice{}, err
	}
	createdAt, err := uint64At(vals, 6, "createdAt")
	if err != nil {
		return domain.Invoice{}, err
	}
	paidAt, err := uint64At(vals, 7, "paidAt")
	if err != nil {
		return domain.Invoice{}, err
	}
	if creator == (common.Address{}) {
		return domain.Invoice{}, fmt.Errorf("%w: invoice %d does not exist", ErrDecode, id)
	}

	inv := domain.Invoice{
		ID:        id,
		Creator:   creator.Hex(),
		Name:      name,
		Details:   details,
		Amount:    amount,
		Paid:      paid,
		CreatedAt: createdAt,
		PaidAt:    paidAt,
	}
	if payer != (common.Address{}) {
		inv.Payer = payer.Hex()
	}
	return inv, nil
}

// InvoicesByCreator returns the ids of every invoice created by creator.
func (c *Client) InvoicesByCreator(ctx context.Context, contract, creator string) ([]uint64, error) {
	addr, err := toAddress(creator)
	if err != nil {
		return nil, err
	}
	vals, err := c.view(ctx, invoicesContract, contract, "getInvoicesByCreator", addr)
	if err != nil {
		return nil, err
	}
	return idsAt(vals, 0, "invoice ids")
}

// CreateInvoice submits createInvoice(name, details, amount).
func (c *Client) CreateInvoice(ctx context.Context, contract, name, details string, amount *big.Int) (string, error) {
	return c.transact(ctx, invoicesContract, contract, "createInvoice", nil, name, details, amount)
}

// PayInvoice submits payInvoice(id) with value attached.
func (c *Client) PayInvoice(ctx context.Context, contract string, id uint64, value *big.Int) (string, error) {
	return c.transact(ctx, invoicesContract, contract, "payInvoice", value, new(big.Int).SetUint64(id))
}
