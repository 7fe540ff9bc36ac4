// Package store persists transactions created through the registry.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/vitwit/currency/types"
)

// ErrNotFound is returned by Get when no record matches.
var ErrNotFound = errors.New("record not found")

// Record is a transaction descriptor plus the outcome of its broadcast.
type Record struct {
	RequestID string
	Tx        *types.Tx
	Accepted  bool
	Error     string
	CreatedAt time.Time
}

// TxStore is the persistence surface used by the settlement service.
type TxStore interface {
	Save(ctx context.Context, rec Record) error
	Get(ctx context.Context, kind types.CurrencyKind, txID string) (*Record, error)
	ListByCurrency(ctx context.Context, kind types.CurrencyKind, limit int) ([]Record, error)
	Close() error
}
