package influx

import (
	"context"
	"fmt"
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/shopspring/decimal"

	"positionScope/internal/model"
)

const measurement = "uniswapv3_position"

// Sink writes valuation points to an InfluxDB v2 bucket.
type Sink struct {
	client influxdb2.Client
	writer api.WriteAPIBlocking
}

func NewSink(url, token, org, bucket string) (*Sink, error) {
	if url == "" || bucket == "" {
		return nil, fmt.Errorf("influx url and bucket are required")
	}
	client := influxdb2.NewClient(url, token)
	return &Sink{client: client, writer: client.WriteAPIBlocking(org, bucket)}, nil
}

func (s *Sink) Close() {
	if s.client != nil {
		s.client.Close()
	}
}

// PutValuations writes one point per record.
func (s *Sink) PutValuations(ctx context.Context, records []model.ValuationRecord) error {
	if len(records) == 0 {
		return nil
	}
	points := make([]*write.Point, 0, len(records))
	for _, rec := range records {
		point, err := buildPoint(rec)
		if err != nil {
			return err
		}
		points = append(points, point)
	}
	if err := s.writer.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("write points: %w", err)
	}
	return nil
}

func buildPoint(rec model.ValuationRecord) (*write.Point, error) {
	tags := map[string]string{
		"chain":    strconv.FormatUint(rec.ChainID, 10),
		"token_id": rec.TokenID,
		"pool":     rec.Pool,
		"region":   rec.Region,
	}
	if rec.Symbol0 != "" {
		tags["symbol0"] = rec.Symbol0
	}
	if rec.Symbol1 != "" {
		tags["symbol1"] = rec.Symbol1
	}

	fields := map[string]interface{}{
		"block": int64(rec.BlockNumber),
		"tick":  int64(rec.Tick),
	}
	decimals := map[string]string{
		"amount0":        rec.Amount0,
		"amount1":        rec.Amount1,
		"unclaimed_fee0": rec.UnclaimedFee0,
		"unclaimed_fee1": rec.UnclaimedFee1,
	}
	for name, raw := range decimals {
		value, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("parse %s %q: %w", name, raw, err)
		}
		fields[name] = value.InexactFloat64()
	}

	timestamp := time.Unix(int64(rec.Timestamp), 0).UTC()
	return write.NewPoint(measurement, tags, fields, timestamp), nil
}
