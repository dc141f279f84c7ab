package valuation

import "errors"

// Error kinds reported by the engine. Callers match them with errors.Is;
// the returned errors wrap these with the offending value.
var (
	ErrInvalidPrice = errors.New("invalid price")
	ErrInvalidRange = errors.New("invalid tick range")
	ErrOverflow     = errors.New("arithmetic overflow")
)
