package writer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	cbigquery "cloud.google.com/go/bigquery"
	"go.uber.org/multierr"

	"github.com/vendeo/vendeo-backend/internal/analytics/types"
)

// Config names the target tables and tunes batching and retries.
type Config struct {
	CommissionTable  string
	DistributorTable string
	// BatchSize of 1 (the default) writes every row through immediately.
	BatchSize   int
	RetryPolicy RetryPolicy
}

type tableInserter interface {
	InsertRows(ctx context.Context, table string, rows []any) error
}

type buffer[T any] struct {
	table string
	rows  []T
}

// drain hands the buffered rows to the inserter and empties the buffer even
// when the insert later fails: the subscription nacks and Pub/Sub redelivers.
func (b *buffer[T]) drain() []any {
	out := make([]any, len(b.rows))
	for i := range b.rows {
		out[i] = &b.rows[i]
	}
	b.rows = nil
	return out
}

// BigQueryWriter streams commission and distributor analytics rows. It is
// shared by both subscriptions, so every buffer access holds mu.
type BigQueryWriter struct {
	client    tableInserter
	batchSize int
	retry     RetryPolicy

	mu           sync.Mutex
	commissions  buffer[types.CommissionEventRow]
	distributors buffer[types.DistributorEventRow]
}

func New(client tableInserter, cfg Config) (*BigQueryWriter, error) {
	if client == nil {
		return nil, errors.New("bigquery client required")
	}
	commissionTable := strings.TrimSpace(cfg.CommissionTable)
	distributorTable := strings.TrimSpace(cfg.DistributorTable)
	switch {
	case commissionTable == "":
		return nil, errors.New("commission table is required")
	case distributorTable == "":
		return nil, errors.New("distributor table is required")
	}
	return &BigQueryWriter{
		client:       client,
		batchSize:    max(cfg.BatchSize, 1),
		retry:        cfg.RetryPolicy.withDefaults(),
		commissions:  buffer[types.CommissionEventRow]{table: commissionTable},
		distributors: buffer[types.DistributorEventRow]{table: distributorTable},
	}, nil
}

func (w *BigQueryWriter) InsertCommission(ctx context.Context, row types.CommissionEventRow) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return enqueue(ctx, w, &w.commissions, row)
}

func (w *BigQueryWriter) InsertDistributor(ctx context.Context, row types.DistributorEventRow) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return enqueue(ctx, w, &w.distributors, row)
}

// Flush writes both buffers; a failure on one table does not skip the other.
func (w *BigQueryWriter) Flush(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return multierr.Append(
		flush(ctx, w, &w.commissions),
		flush(ctx, w, &w.distributors),
	)
}

func enqueue[T any](ctx context.Context, w *BigQueryWriter, b *buffer[T], row T) error {
	b.rows = append(b.rows, row)
	if len(b.rows) < w.batchSize {
		return nil
	}
	return flush(ctx, w, b)
}

func flush[T any](ctx context.Context, w *BigQueryWriter, b *buffer[T]) error {
	if len(b.rows) == 0 {
		return nil
	}
	rows := b.drain()
	if err := w.retry.do(ctx, func() error {
		return w.client.InsertRows(ctx, b.table, rows)
	}); err != nil {
		return fmt.Errorf("insert %s rows: %w", b.table, err)
	}
	return nil
}

// EncodeJSON converts an event payload into a BigQuery JSON column value.
// Empty input yields a NULL column.
func EncodeJSON(payload any) (cbigquery.NullJSON, error) {
	var raw []byte
	switch value := payload.(type) {
	case nil:
		return cbigquery.NullJSON{}, nil
	case cbigquery.NullJSON:
		return value, nil
	case json.RawMessage:
		raw = value
	case []byte:
		raw = value
	default:
		marshaled, err := json.Marshal(value)
		if err != nil {
			return cbigquery.NullJSON{}, fmt.Errorf("marshal json: %w", err)
		}
		raw = marshaled
	}
	if len(raw) == 0 {
		return cbigquery.NullJSON{}, nil
	}
	return cbigquery.NullJSON{Valid: true, JSONVal: string(raw)}, nil
}
