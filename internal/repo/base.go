package repo

import (
	"context"

	"gorm.io/gorm"
)

// Base is embedded by the domain repositories for context and transaction binding.
type Base struct {
	db *gorm.DB
}

// NewBase constructs a Base repository backed by the provided GORM connection.
func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB returns the connection bound to ctx. A nil ctx yields the raw connection.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// WithTx returns a copy of b that issues every query through tx.
func (b Base) WithTx(tx *gorm.DB) Base {
	if tx == nil {
		return b
	}
	return Base{db: tx}
}

// Transaction runs fn inside a transaction scoped to ctx.
func (b Base) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return b.DB(ctx).Transaction(fn)
}
