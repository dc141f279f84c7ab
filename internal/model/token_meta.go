package model

// TokenMeta is the ERC20 metadata attached to a valuation. Decimals scales
// raw amounts; Symbol and Name are best-effort and may be empty.
type TokenMeta struct {
	Address  string `json:"address"`
	Decimals uint8  `json:"decimals"`
	Symbol   string `json:"symbol,omitempty"`
	Name     string `json:"name,omitempty"`
}
