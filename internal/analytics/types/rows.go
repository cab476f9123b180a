package types

import (
	"math/big"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
)

// CommissionEventRow mirrors the commission_events BigQuery table. Recorded
// events fill the transaction columns; month transitions fill status, updated
// and total.
type CommissionEventRow struct {
	EventID       string             `bigquery:"event_id"`
	EventType     string             `bigquery:"event_type"`
	OccurredAt    time.Time          `bigquery:"occurred_at"`
	DistributorID string             `bigquery:"distributor_id"`
	MonthKey      string             `bigquery:"month_key"`
	TransactionID *string            `bigquery:"transaction_id"`
	ClientID      *string            `bigquery:"client_id"`
	ProductType   *string            `bigquery:"product_type"`
	Level         *int64             `bigquery:"level"`
	SaleAmount    *big.Rat           `bigquery:"sale_amount"`
	Amount        *big.Rat           `bigquery:"amount"`
	Rate          *big.Rat           `bigquery:"rate"`
	Status        *string            `bigquery:"status"`
	Updated       *int64             `bigquery:"updated"`
	Payload       cbigquery.NullJSON `bigquery:"payload"`
}

// DistributorEventRow mirrors the distributor_events BigQuery table.
type DistributorEventRow struct {
	EventID          string             `bigquery:"event_id"`
	EventType        string             `bigquery:"event_type"`
	OccurredAt       time.Time          `bigquery:"occurred_at"`
	DistributorID    string             `bigquery:"distributor_id"`
	UserID           *string            `bigquery:"user_id"`
	ReferralCode     *string            `bigquery:"referral_code"`
	ParentID         *string            `bigquery:"parent_id"`
	PreviousParentID *string            `bigquery:"previous_parent_id"`
	Level            *int64             `bigquery:"level"`
	Payload          cbigquery.NullJSON `bigquery:"payload"`
}

// InsertID is the event id: every event produces exactly one row.
func (r *CommissionEventRow) InsertID() string { return r.EventID }

func (r *DistributorEventRow) InsertID() string { return r.EventID }
