package domain

type ChainID string
type ChainName string

const (
	// Chain IDs
	ChainIDEthereum ChainID = "1"
	ChainIDPolygon  ChainID = "137"
	ChainIDBase     ChainID = "8453"
	ChainIDSepolia  ChainID = "11155111"

	// Chain Names (Internal Codes)
	ChainNameEthereum ChainName = "ETHEREUM_MAINNET"
	ChainNamePolygon  ChainName = "POLYGON_MAINNET"
	ChainNameBase     ChainName = "BASE_MAINNET"
	ChainNameSepolia  ChainName = "ETHEREUM_SEPOLIA"
)

// ChainIDToName maps ChainID to its human-readable InternalCode/Name.
var ChainIDToName = map[ChainID]ChainName{
	ChainIDEthereum: ChainNameEthereum,
	ChainIDPolygon:  ChainNamePolygon,
	ChainIDBase:     ChainNameBase,
	ChainIDSepolia:  ChainNameSepolia,
}

// ChainNameToID maps Chain Name to its ID.
var ChainNameToID = map[ChainName]ChainID{
	ChainNameEthereum: ChainIDEthereum,
	ChainNamePolygon:  ChainIDPolygon,
	ChainNameBase:     ChainIDBase,
	ChainNameSepolia:  ChainIDSepolia,
}

// Contracts holds the deployed payroll contract addresses on a chain.
// An empty address means the feature is not available on that network.
type Contracts struct {
	BulkTransfer string
	Stream       string
	Invoices     string
}

// Chain describes a target network.
type Chain struct {
	ID           ChainID
	Name         ChainName
	NativeSymbol string
	Contracts    Contracts
}

// Label returns the internal name when known, falling back to the numeric ID.
func (c Chain) Label() string {
	if c.Name != "" {
		return string(c.Name)
	}
	if name, ok := ChainIDToName[c.ID]; ok {
		return string(name)
	}
	return string(c.ID)
}
