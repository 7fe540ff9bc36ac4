// Package settlement funds transfers end to end: estimate, sign, broadcast, record.
package settlement

import (
	"context"
	"math/big"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/vitwit/currency/clients"
	"github.com/vitwit/currency/logger"
	"github.com/vitwit/currency/metrics"
	"github.com/vitwit/currency/store"
	"github.com/vitwit/currency/types"
)

// DefaultBatchConcurrency bounds how many fund requests BatchFund runs at once.
const DefaultBatchConcurrency = 8

// Resolver looks up the adapter for a currency.
type Resolver interface {
	Currency(kind types.CurrencyKind) (clients.Currency, error)
}

// FundRequest asks for amount base units to be sent to To.
type FundRequest struct {
	Currency types.CurrencyKind
	Amount   *big.Int
	To       string

	// Fee pins the fee. When nil the adapter's estimate is used, scaled by Multiplier.
	Fee        *big.Int
	Multiplier *big.Rat
}

// FundResult describes a single fund attempt. Err is set when the attempt failed
// at any step; Tx is set once a transaction was built.
type FundResult struct {
	RequestID string
	Currency  types.CurrencyKind
	TxID      string
	Fee       *big.Int
	Accepted  bool
	Tx        *types.Tx
	Err       error
}

// Quote is the cost of a prospective transfer.
type Quote struct {
	Currency types.CurrencyKind
	Amount   *big.Int
	Fee      *big.Int
	NeedsFee bool
	Price    string
	Height   *big.Int
}

// Service manages funding across currencies.
type Service struct {
	resolver    Resolver
	store       store.TxStore
	logger      logger.Logger
	metrics     metrics.Recorder
	timeout     time.Duration
	concurrency int
}

// Option configures a Service.
type Option func(*Service)

func WithStore(s store.TxStore) Option {
	return func(svc *Service) {
		svc.store = s
	}
}

func WithLogger(l logger.Logger) Option {
	return func(svc *Service) {
		svc.logger = l
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(svc *Service) {
		svc.metrics = r
	}
}

func WithConcurrency(n int) Option {
	return func(svc *Service) {
		svc.concurrency = n
	}
}

// NewService creates a settlement service. A non-positive timeout disables the per-request deadline.
func NewService(resolver Resolver, timeout time.Duration, opts ...Option) *Service {
	s := &Service{
		resolver:    resolver,
		timeout:     timeout,
		concurrency: DefaultBatchConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logger.OrNoop(s.logger)
	s.metrics = metrics.OrNoop(s.metrics)
	if s.concurrency <= 0 {
		s.concurrency = DefaultBatchConcurrency
	}
	return s
}

// Fund estimates the fee (unless pinned), builds and signs the transfer,
// broadcasts it once and records the outcome. Broadcast failures are never retried.
func (s *Service) Fund(ctx context.Context, req FundRequest) (*FundResult, error) {
	res := s.fund(ctx, req)
	return res, res.Err
}

func (s *Service) fund(ctx context.Context, req FundRequest) *FundResult {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	res := &FundResult{RequestID: uuid.NewString(), Currency: req.Currency}
	labels := map[string]string{"currency": req.Currency.String()}
	defer func() {
		s.metrics.ObserveLatency("fund", time.Since(start), labels)
		if res.Err != nil {
			s.metrics.IncCounter("fund_error", labels)
			s.logger.Error("fund failed", map[string]any{
				"request_id": res.RequestID,
				"currency":   req.Currency.String(),
				"to":         req.To,
				"tx_id":      res.TxID,
				"error":      res.Err,
				"retryable":  types.IsRetryable(res.Err),
			})
			return
		}
		s.metrics.IncCounter("fund_success", labels)
		s.logger.Info("fund broadcast", map[string]any{
			"request_id": res.RequestID,
			"currency":   req.Currency.String(),
			"to":         req.To,
			"tx_id":      res.TxID,
			"fee":        res.Fee.String(),
		})
	}()

	c, err := s.resolver.Currency(req.Currency)
	if err != nil {
		res.Err = err
		return res
	}

	fee := req.Fee
	if fee == nil {
		fee, err = c.EstimateFee(ctx, req.Amount, req.To, req.Multiplier)
		if err != nil {
			res.Err = err
			return res
		}
	}
	res.Fee = new(big.Int).Set(fee)

	tx, err := c.CreateTx(ctx, req.Amount, req.To, fee)
	if err != nil {
		res.Err = err
		return res
	}
	res.Tx = tx
	res.TxID = tx.ID

	res.Accepted, res.Err = c.Broadcast(ctx, tx.Raw)
	tx.Pending = !res.Accepted

	if s.store != nil {
		rec := store.Record{RequestID: res.RequestID, Tx: tx, Accepted: res.Accepted}
		if res.Err != nil {
			rec.Error = res.Err.Error()
		}
		if err := s.store.Save(ctx, rec); err != nil {
			s.logger.Warn("failed to persist transaction", map[string]any{
				"request_id": res.RequestID,
				"tx_id":      tx.ID,
				"error":      err,
			})
		}
	}

	return res
}

// BatchFund funds every request concurrently. Results line up with reqs; each
// carries its own Err. The returned error is non-nil only when ctx ends first.
func (s *Service) BatchFund(ctx context.Context, reqs []FundRequest) ([]*FundResult, error) {
	results := make([]*FundResult, len(reqs))

	g := new(errgroup.Group)
	g.SetLimit(s.concurrency)
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			results[i] = s.fund(ctx, req)
			return nil
		})
	}
	_ = g.Wait()

	return results, ctx.Err()
}

// Quote gathers fee, price and height for a prospective transfer in parallel.
func (s *Service) Quote(
	ctx context.Context,
	kind types.CurrencyKind,
	amount *big.Int,
	to string,
	multiplier *big.Rat,
) (*Quote, error) {
	if amount == nil {
		return nil, types.NewCurrencyError(types.ErrCodeInvalidArgument, kind, "amount is required", nil)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	c, err := s.resolver.Currency(kind)
	if err != nil {
		return nil, err
	}

	q := &Quote{Currency: kind, Amount: new(big.Int).Set(amount), NeedsFee: c.NeedsFee()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		fee, err := c.EstimateFee(gctx, amount, to, multiplier)
		q.Fee = fee
		return err
	})
	g.Go(func() error {
		price, err := c.Price(gctx)
		q.Price = price
		return err
	})
	g.Go(func() error {
		height, err := c.CurrentHeight(gctx)
		q.Height = height
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return q, nil
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}
