package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/vitwit/currency/types"
)

var _ TxStore = (*SQLiteStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS transactions (
	currency   INTEGER NOT NULL,
	tx_id      TEXT NOT NULL,
	request_id TEXT NOT NULL,
	sender     TEXT NOT NULL,
	recipient  TEXT NOT NULL,
	amount     TEXT NOT NULL,
	fee        TEXT NOT NULL,
	raw        BLOB,
	accepted   BOOLEAN NOT NULL DEFAULT 0,
	error      TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL,
	PRIMARY KEY (currency, tx_id)
);
CREATE INDEX IF NOT EXISTS idx_transactions_currency_created ON transactions(currency, created_at);
`

const (
	queryUpsertTransaction = `
	INSERT INTO transactions (currency, tx_id, request_id, sender, recipient, amount, fee, raw, accepted, error, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (currency, tx_id) DO UPDATE SET
		accepted = excluded.accepted,
		error = excluded.error`

	querySelectTransaction = `
	SELECT currency, tx_id, request_id, sender, recipient, amount, fee, raw, accepted, error, created_at
	FROM transactions WHERE currency = ? AND tx_id = ?`

	queryListTransactions = `
	SELECT currency, tx_id, request_id, sender, recipient, amount, fee, raw, accepted, error, created_at
	FROM transactions WHERE currency = ? ORDER BY created_at DESC, tx_id LIMIT ?`
)

// SQLiteStore keeps records in a SQLite database. Amounts are stored as
// decimal text so no precision is lost.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path. ":memory:" is accepted.
func Open(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}

	dsn := path
	if path != ":memory:" {
		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}
	if path == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Save(ctx context.Context, rec Record) error {
	if rec.Tx == nil || rec.Tx.ID == "" {
		return fmt.Errorf("record has no transaction")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	rec.CreatedAt = rec.CreatedAt.UTC()

	_, err := s.db.ExecContext(ctx, queryUpsertTransaction,
		rec.Tx.Currency,
		rec.Tx.ID,
		rec.RequestID,
		rec.Tx.From,
		rec.Tx.To,
		bigText(rec.Tx.Amount),
		bigText(rec.Tx.Fee),
		rec.Tx.Raw,
		rec.Accepted,
		rec.Error,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save transaction %s: %w", rec.Tx.ID, err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, kind types.CurrencyKind, txID string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, querySelectTransaction, kind, txID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction %s: %w", txID, err)
	}
	return rec, nil
}

func (s *SQLiteStore) ListByCurrency(ctx context.Context, kind types.CurrencyKind, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, queryListTransactions, kind, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, error) {
	var (
		tx          types.Tx
		rec         Record
		amount, fee string
	)
	err := row.Scan(&tx.Currency, &tx.ID, &rec.RequestID, &tx.From, &tx.To, &amount, &fee,
		&tx.Raw, &rec.Accepted, &rec.Error, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}

	var ok bool
	if tx.Amount, ok = new(big.Int).SetString(amount, 10); !ok {
		return nil, fmt.Errorf("corrupt amount %q", amount)
	}
	if tx.Fee, ok = new(big.Int).SetString(fee, 10); !ok {
		return nil, fmt.Errorf("corrupt fee %q", fee)
	}
	tx.Pending = !rec.Accepted
	rec.Tx = &tx
	return &rec, nil
}

func bigText(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
