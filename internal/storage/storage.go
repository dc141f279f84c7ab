package storage

import (
	"context"

	"positionScope/internal/model"
)

// Sink persists valuation records.
type Sink interface {
	PutValuations(ctx context.Context, records []model.ValuationRecord) error
}
