package writer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vendeo/vendeo-backend/internal/analytics/types"
)

const (
	commissionTable  = "commission_events"
	distributorTable = "distributor_events"
)

func TestNewValidation(t *testing.T) {
	_, err := New(nil, Config{CommissionTable: commissionTable, DistributorTable: distributorTable})
	assert.Error(t, err)
	_, err = New(&fakeInserter{}, Config{CommissionTable: " ", DistributorTable: distributorTable})
	assert.Error(t, err)
	_, err = New(&fakeInserter{}, Config{CommissionTable: commissionTable})
	assert.Error(t, err)

	w, err := New(&fakeInserter{}, Config{CommissionTable: commissionTable, DistributorTable: distributorTable})
	require.NoError(t, err)
	assert.Equal(t, 1, w.batchSize)
	assert.Equal(t, 3, w.retry.MaxAttempts)
}

func TestEncodeJSON(t *testing.T) {
	nj, err := EncodeJSON(map[string]any{"month_key": "2026-05"})
	require.NoError(t, err)
	assert.True(t, nj.Valid)
	assert.JSONEq(t, `{"month_key":"2026-05"}`, nj.JSONVal)

	for _, empty := range []any{nil, json.RawMessage(nil), []byte{}} {
		nj, err = EncodeJSON(empty)
		require.NoError(t, err)
		assert.False(t, nj.Valid, "%T should encode as NULL", empty)
	}

	raw := json.RawMessage(`{"status":"payee"}`)
	nj, err = EncodeJSON(raw)
	require.NoError(t, err)
	assert.Equal(t, string(raw), nj.JSONVal)

	_, err = EncodeJSON(func() {})
	assert.Error(t, err)
}

func TestInsertRetriesTransientErrors(t *testing.T) {
	w, fake := newTestWriter(t, 1)
	fake.responses = []error{
		&googleapi.Error{Code: http.StatusServiceUnavailable},
		status.Error(codes.Unavailable, "try again"),
		nil,
	}

	require.NoError(t, w.InsertCommission(context.Background(), types.CommissionEventRow{EventID: "1"}))
	require.Len(t, fake.calls, 3)
	for _, call := range fake.calls {
		assert.Equal(t, commissionTable, call.table)
		assert.Equal(t, 1, call.rowCount, "retries resend the same rows")
	}
	assert.Empty(t, w.commissions.rows)
}

func TestInsertStopsOnPermanentError(t *testing.T) {
	w, fake := newTestWriter(t, 1)
	fake.responses = []error{&googleapi.Error{Code: http.StatusBadRequest}}

	err := w.InsertDistributor(context.Background(), types.DistributorEventRow{EventID: "1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), distributorTable)
	assert.Len(t, fake.calls, 1)
	assert.Empty(t, w.distributors.rows, "failed rows are not kept")
}

func TestInsertGivesUpAfterMaxAttempts(t *testing.T) {
	w, fake := newTestWriter(t, 1)
	transient := &googleapi.Error{Code: http.StatusTooManyRequests}
	fake.responses = []error{transient, transient, transient, transient}

	err := w.InsertCommission(context.Background(), types.CommissionEventRow{EventID: "1"})
	assert.ErrorIs(t, err, transient)
	assert.Len(t, fake.calls, 3)
}

func TestInsertHonorsCanceledContext(t *testing.T) {
	w, fake := newTestWriter(t, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := w.InsertCommission(ctx, types.CommissionEventRow{EventID: "1"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, fake.calls)
}

func TestInsertBatches(t *testing.T) {
	w, fake := newTestWriter(t, 2)

	require.NoError(t, w.InsertDistributor(context.Background(), types.DistributorEventRow{EventID: "1"}))
	assert.Empty(t, fake.calls)
	require.NoError(t, w.InsertDistributor(context.Background(), types.DistributorEventRow{EventID: "2"}))
	require.Len(t, fake.calls, 1)
	assert.Equal(t, insertCall{table: distributorTable, rowCount: 2}, fake.calls[0])
}

func TestFlushWritesBothTablesEvenWhenOneFails(t *testing.T) {
	w, fake := newTestWriter(t, 10)
	fake.responses = []error{&googleapi.Error{Code: http.StatusForbidden}}

	require.NoError(t, w.InsertCommission(context.Background(), types.CommissionEventRow{EventID: "1"}))
	require.NoError(t, w.InsertDistributor(context.Background(), types.DistributorEventRow{EventID: "2"}))

	err := w.Flush(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), commissionTable)
	assert.Equal(t, []insertCall{
		{table: commissionTable, rowCount: 1},
		{table: distributorTable, rowCount: 1},
	}, fake.calls)
	assert.Empty(t, w.commissions.rows)
	assert.Empty(t, w.distributors.rows)

	require.NoError(t, w.Flush(context.Background()), "empty buffers flush as a no-op")
	assert.Len(t, fake.calls, 2)
}

func TestIsRetryableBigQueryError(t *testing.T) {
	unavailable := &googleapi.Error{Code: http.StatusServiceUnavailable}
	invalid := &googleapi.Error{Code: http.StatusBadRequest}
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("boom"), false},
		{"http 503", unavailable, true},
		{"http 403", &googleapi.Error{Code: http.StatusForbidden}, false},
		{"grpc resource exhausted", status.Error(codes.ResourceExhausted, "quota"), true},
		{"grpc invalid argument", status.Error(codes.InvalidArgument, "schema"), false},
		{"multi all transient", cbigquery.MultiError{unavailable, unavailable}, true},
		{"multi with invalid", cbigquery.MultiError{unavailable, invalid}, false},
		{"empty multi", cbigquery.MultiError{}, false},
		{"rows all transient", cbigquery.PutMultiError{
			{RowIndex: 0, Errors: cbigquery.MultiError{unavailable}},
			{RowIndex: 1, Errors: cbigquery.MultiError{unavailable}},
		}, true},
		{"one bad row", cbigquery.PutMultiError{
			{RowIndex: 0, Errors: cbigquery.MultiError{unavailable}},
			{RowIndex: 1, Errors: cbigquery.MultiError{invalid}},
		}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, isRetryableBigQueryError(tc.err))
		})
	}
}

type insertCall struct {
	table    string
	rowCount int
}

type fakeInserter struct {
	responses []error
	calls     []insertCall
}

func (f *fakeInserter) InsertRows(_ context.Context, table string, rows []any) error {
	var err error
	if len(f.calls) < len(f.responses) {
		err = f.responses[len(f.calls)]
	}
	f.calls = append(f.calls, insertCall{table: table, rowCount: len(rows)})
	return err
}

func newTestWriter(t *testing.T, batchSize int) (*BigQueryWriter, *fakeInserter) {
	t.Helper()
	fake := &fakeInserter{}
	w, err := New(fake, Config{
		CommissionTable:  commissionTable,
		DistributorTable: distributorTable,
		BatchSize:        batchSize,
		RetryPolicy: RetryPolicy{
			InitialBackoff: time.Millisecond,
			MaximumBackoff: 2 * time.Millisecond,
		},
	})
	require.NoError(t, err)
	return w, fake
}
