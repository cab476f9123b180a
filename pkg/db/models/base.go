package models

import "github.com/google/uuid"

// assignID fills a missing primary key so inserts work on every dialect,
// including SQLite which has no gen_random_uuid().
func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

// All returns every model owned by the service, for tooling and tests.
func All() []any {
	return []any{
		&Seller{},
		&Client{},
		&Sale{},
		&Distributor{},
		&CommissionRule{},
		&CommissionTransaction{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
