package settlement

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitwit/currency/clients"
	"github.com/vitwit/currency/signer"
	"github.com/vitwit/currency/store"
	"github.com/vitwit/currency/types"
)

// stubCurrency is an in-memory adapter charging a flat fee of 100 per transfer.
type stubCurrency struct {
	kind         types.CurrencyKind
	broadcastErr error
	estimateErr  error
	created      atomic.Int64
	broadcasts   atomic.Int64

	mu  sync.Mutex
	txs map[string]*types.Tx
}

func newStub(kind types.CurrencyKind) *stubCurrency {
	return &stubCurrency{kind: kind, txs: make(map[string]*types.Tx)}
}

func (s *stubCurrency) Kind() types.CurrencyKind { return s.kind }
func (s *stubCurrency) NeedsFee() bool           { return s.kind != types.CurrencySolana }
func (s *stubCurrency) Signer() signer.Signer    { return nil }

func (s *stubCurrency) TxView(id string) (*types.Tx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.txs[id]
	if !ok {
		return nil, types.ErrTxNotFound
	}
	return tx.Clone(), nil
}

func (s *stubCurrency) OwnerToAddress(owner string) (string, error) { return owner, nil }

func (s *stubCurrency) ItemID(context.Context, []byte) (string, error) { return "", nil }

func (s *stubCurrency) Price(context.Context) (string, error) { return "1.5", nil }

func (s *stubCurrency) CurrentHeight(context.Context) (*big.Int, error) { return big.NewInt(77), nil }

func (s *stubCurrency) EstimateFee(_ context.Context, amount *big.Int, _ string, m *big.Rat) (*big.Int, error) {
	if s.estimateErr != nil {
		return nil, s.estimateErr
	}
	if amount == nil {
		return nil, types.ErrInvalidArgument
	}
	return clients.ApplyMultiplier(big.NewInt(100), m)
}

func (s *stubCurrency) CreateTx(_ context.Context, amount *big.Int, to string, fee *big.Int) (*types.Tx, error) {
	n := s.created.Add(1)
	tx := &types.Tx{
		ID:       fmt.Sprintf("%s-%d", s.kind, n),
		Currency: s.kind,
		To:       to,
		Amount:   new(big.Int).Set(amount),
		Fee:      new(big.Int).Set(fee),
		Pending:  true,
		Raw:      []byte(to),
	}
	s.mu.Lock()
	s.txs[tx.ID] = tx
	s.mu.Unlock()
	return tx.Clone(), nil
}

func (s *stubCurrency) Broadcast(context.Context, []byte) (bool, error) {
	s.broadcasts.Add(1)
	if s.broadcastErr != nil {
		return false, s.broadcastErr
	}
	return true, nil
}

type mapResolver map[types.CurrencyKind]clients.Currency

func (m mapResolver) Currency(kind types.CurrencyKind) (clients.Currency, error) {
	c, ok := m[kind]
	if !ok {
		return nil, types.NewCurrencyError(types.ErrCodeUnsupportedCurrency, kind, "not registered", nil)
	}
	return c, nil
}

func TestService_Fund(t *testing.T) {
	eth := newStub(types.CurrencyEthereum)
	db, err := store.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	defer db.Close()

	svc := NewService(mapResolver{types.CurrencyEthereum: eth}, time.Second, WithStore(db))

	res, err := svc.Fund(context.Background(), FundRequest{
		Currency:   types.CurrencyEthereum,
		Amount:     big.NewInt(1000),
		To:         "0xabc",
		Multiplier: big.NewRat(3, 2),
	})
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	assert.NotEmpty(t, res.RequestID)
	assert.Equal(t, int64(150), res.Fee.Int64())
	assert.Equal(t, "ethereum-1", res.TxID)
	assert.False(t, res.Tx.Pending)

	rec, err := db.Get(context.Background(), types.CurrencyEthereum, res.TxID)
	require.NoError(t, err)
	assert.Equal(t, res.RequestID, rec.RequestID)
	assert.True(t, rec.Accepted)
	assert.Equal(t, int64(1000), rec.Tx.Amount.Int64())
}

func TestService_FundPinnedFee(t *testing.T) {
	sol := newStub(types.CurrencySolana)
	sol.estimateErr = errors.New("must not be called")
	svc := NewService(mapResolver{types.CurrencySolana: sol}, 0)

	res, err := svc.Fund(context.Background(), FundRequest{
		Currency: types.CurrencySolana,
		Amount:   big.NewInt(1),
		To:       "dest",
		Fee:      big.NewInt(5000),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5000), res.Fee.Int64())
}

func TestService_FundBroadcastFailureIsRecordedNotRetried(t *testing.T) {
	cosmos := newStub(types.CurrencyCosmos)
	cosmos.broadcastErr = types.NewCurrencyError(types.ErrCodeBundlingError, types.CurrencyCosmos, "rejected", nil)

	db, err := store.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	defer db.Close()

	svc := NewService(mapResolver{types.CurrencyCosmos: cosmos}, time.Second, WithStore(db))
	res, err := svc.Fund(context.Background(), FundRequest{Currency: types.CurrencyCosmos, Amount: big.NewInt(1), To: "cosmos1x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrBundlingError))
	assert.False(t, res.Accepted)
	assert.Equal(t, int64(1), cosmos.broadcasts.Load())

	rec, err := db.Get(context.Background(), types.CurrencyCosmos, res.TxID)
	require.NoError(t, err)
	assert.False(t, rec.Accepted)
	assert.Contains(t, rec.Error, "rejected")
}

func TestService_FundUnknownCurrency(t *testing.T) {
	svc := NewService(mapResolver{}, time.Second)

	_, err := svc.Fund(context.Background(), FundRequest{Currency: types.CurrencyArweave, Amount: big.NewInt(1)})
	assert.True(t, errors.Is(err, types.ErrUnsupportedCurrency))
}

func TestService_BatchFundPreservesOrder(t *testing.T) {
	eth := newStub(types.CurrencyEthereum)
	sol := newStub(types.CurrencySolana)
	sol.broadcastErr = types.ErrBundlingError
	svc := NewService(mapResolver{types.CurrencyEthereum: eth, types.CurrencySolana: sol}, time.Second, WithConcurrency(2))

	reqs := make([]FundRequest, 0, 10)
	for i := 0; i < 10; i++ {
		kind := types.CurrencyEthereum
		if i%3 == 0 {
			kind = types.CurrencySolana
		}
		reqs = append(reqs, FundRequest{Currency: kind, Amount: big.NewInt(int64(i)), To: fmt.Sprintf("to-%d", i)})
	}

	results, err := svc.BatchFund(context.Background(), reqs)
	require.NoError(t, err)
	require.Len(t, results, len(reqs))

	for i, res := range results {
		require.NotNil(t, res)
		assert.Equal(t, reqs[i].Currency, res.Currency)
		assert.Equal(t, reqs[i].To, res.Tx.To)
		if reqs[i].Currency == types.CurrencySolana {
			assert.Error(t, res.Err)
		} else {
			assert.NoError(t, res.Err)
		}
	}
}

func TestService_Quote(t *testing.T) {
	svc := NewService(mapResolver{types.CurrencyArweave: newStub(types.CurrencyArweave)}, time.Second)

	q, err := svc.Quote(context.Background(), types.CurrencyArweave, big.NewInt(10), "addr", big.NewRat(2, 1))
	require.NoError(t, err)
	assert.Equal(t, int64(200), q.Fee.Int64())
	assert.Equal(t, "1.5", q.Price)
	assert.Equal(t, int64(77), q.Height.Int64())
	assert.True(t, q.NeedsFee)

	_, err = svc.Quote(context.Background(), types.CurrencyArweave, nil, "addr", nil)
	assert.True(t, errors.Is(err, types.ErrInvalidArgument))
}
