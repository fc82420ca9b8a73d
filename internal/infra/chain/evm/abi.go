package evm

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const erc20ABI = `[
	{"type":"function","name":"allowance","stateMutability":"view",
	 "inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"approve","stateMutability":"nonpayable",
	 "inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],
	 "outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"balanceOf","stateMutability":"view",
	 "inputs":[{"name":"account","type":"address"}],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"decimals","stateMutability":"view",
	 "inputs":[],
	 "outputs":[{"name":"","type":"uint8"}]},
	{"type":"function","name":"symbol","stateMutability":"view",
	 "inputs":[],
	 "outputs":[{"name":"","type":"string"}]}
]`

const bulkTransferABI = `[
	{"type":"function","name":"bulkTransfer","stateMutability":"payable",
	 "inputs":[{"name":"token","type":"address"},{"name":"recipients","type":"address[]"},{"name":"amounts","type":"uint256[]"}],
	 "outputs":[]}
]`

// getStream returns a struct of static fields, which encodes the same as the
// flat output list below.
const streamABI = `[
	{"type":"function","name":"getStream","stateMutability":"view",
	 "inputs":[{"name":"streamId","type":"uint256"}],
	 "outputs":[
		{"name":"sender","type":"address"},
		{"name":"recipient","type":"address"},
		{"name":"token","type":"address"},
		{"name":"totalAmount","type":"uint256"},
		{"name":"claimedAmount","type":"uint256"},
		{"name":"startTime","type":"uint256"},
		{"name":"endTime","type":"uint256"},
		{"name":"active","type":"bool"}]},
	{"type":"function","name":"getClaimableAmount","stateMutability":"view",
	 "inputs":[{"name":"streamId","type":"uint256"}],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"getRecipientStreams","stateMutability":"view",
	 "inputs":[{"name":"recipient","type":"address"}],
	 "outputs":[{"name":"","type":"uint256[]"}]},
	{"type":"function","name":"createBulkStreams","stateMutability":"payable",
	 "inputs":[{"name":"token","type":"address"},{"name":"recipients","type":"address[]"},{"name":"amounts","type":"uint256[]"},{"name":"durations","type":"uint256[]"}],
	 "outputs":[]},
	{"type":"function","name":"claimStream","stateMutability":"nonpayable",
	 "inputs":[{"name":"streamId","type":"uint256"}],
	 "outputs":[]},
	{"type":"function","name":"claimMultipleStreams","stateMutability":"nonpayable",
	 "inputs":[{"name":"streamIds","type":"uint256[]"}],
	 "outputs":[]}
]`

// getInvoice returns Invoice memory. The strings make the struct dynamic, so
// the answer is one offset-headed tuple.
const invoicesABI = `[
	{"type":"function","name":"getInvoice","stateMutability":"view",
	 "inputs":[{"name":"invoiceId","type":"uint256"}],
	 "outputs":[{"name":"invoice","type":"tuple","components":[
		{"name":"creator","type":"address"},
		{"name":"name","type":"string"},
		{"name":"details","type":"string"},
		{"name":"amount","type":"uint256"},
		{"name":"paid","type":"bool"},
		{"name":"payer","type":"address"},
		{"name":"createdAt","type":"uint256"},
		{"name":"paidAt","type":"uint256"}]}]},
	{"type":"function","name":"getInvoicesByCreator","stateMutability":"view",
	 "inputs":[{"name":"creator","type":"address"}],
	 "outputs":[{"name":"","type":"uint256[]"}]},
	{"type":"function","name":"createInvoice","stateMutability":"nonpayable",
	 "inputs":[{"name":"name","type":"string"},{"name":"details","type":"string"},{"name":"amount","type":"uint256"}],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"payInvoice","stateMutability":"payable",
	 "inputs":[{"name":"invoiceId","type":"uint256"}],
	 "outputs":[]}
]`

// invoiceFlatABI is the same selector for deployments that return the members
// as separate values.
const invoiceFlatABI = `[
	{"type":"function","name":"getInvoice","stateMutability":"view",
	 "inputs":[{"name":"invoiceId","type":"uint256"}],
	 "outputs":[
		{"name":"creator","type":"address"},
		{"name":"name","type":"string"},
		{"name":"details","type":"string"},
		{"name":"amount","type":"uint256"},
		{"name":"paid","type":"bool"},
		{"name":"payer","type":"address"},
		{"name":"createdAt","type":"uint256"},
		{"name":"paidAt","type":"uint256"}]}
]`

var (
	erc20Contract     = mustParseABI(erc20ABI)
	bulkTransferProxy = mustParseABI(bulkTransferABI)
	streamContract    = mustParseABI(streamABI)
	invoicesContract  = mustParseABI(invoicesABI)
	invoiceFlat       = mustParseABI(invoiceFlatABI)
)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic("evm: invalid contract abi: " + err.Error())
	}
	return parsed
}
