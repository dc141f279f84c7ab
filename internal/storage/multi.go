package storage

import (
	"context"
	"errors"

	"positionScope/internal/model"
)

// MultiSink writes every batch to each of its sinks in order. All sinks are
// attempted; their errors are joined.
type MultiSink []Sink

func (m MultiSink) PutValuations(ctx context.Context, records []model.ValuationRecord) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.PutValuations(ctx, records); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
