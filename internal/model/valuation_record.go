package model

// ValuationRecord is one valuation of a position at a block, ready for
// storage or display. Raw amounts are integer strings in the token's smallest
// unit; scaled amounts are exact decimal strings.
type ValuationRecord struct {
	ChainID      uint64 `json:"chain_id"`
	TokenID      string `json:"token_id"`
	BlockNumber  uint64 `json:"block_number"`
	Timestamp    uint64 `json:"timestamp"`
	Owner        string `json:"owner"`
	Pool         string `json:"pool"`
	Token0       string `json:"token0"`
	Token1       string `json:"token1"`
	Symbol0      string `json:"symbol0,omitempty"`
	Symbol1      string `json:"symbol1,omitempty"`
	Decimals0    uint8  `json:"decimals0"`
	Decimals1    uint8  `json:"decimals1"`
	Fee          uint32 `json:"fee"`
	TickLower    int32  `json:"tick_lower"`
	TickUpper    int32  `json:"tick_upper"`
	Tick         int32  `json:"tick"`
	Region       string `json:"region"`
	SqrtPriceX96 string `json:"sqrt_price_x96"`
	Liquidity    string `json:"liquidity"`

	Amount0Raw       string `json:"amount0_raw"`
	Amount1Raw       string `json:"amount1_raw"`
	Amount0          string `json:"amount0"`
	Amount1          string `json:"amount1"`
	UnclaimedFee0Raw string `json:"unclaimed_fee0_raw"`
	UnclaimedFee1Raw string `json:"unclaimed_fee1_raw"`
	UnclaimedFee0    string `json:"unclaimed_fee0"`
	UnclaimedFee1    string `json:"unclaimed_fee1"`

	ValuedAt string `json:"valued_at"`
}
