package clients

import (
	"context"
	"math/big"
	"time"

	"github.com/vitwit/currency/logger"
	"github.com/vitwit/currency/metrics"
	"github.com/vitwit/currency/signer"
	"github.com/vitwit/currency/types"
)

// Instrument wraps c so every network call is timed, counted and logged.
// Local methods pass straight through.
func Instrument(c Currency, log logger.Logger, rec metrics.Recorder) Currency {
	kind := c.Kind().String()
	return &instrumented{
		next:   c,
		log:    logger.OrNoop(log).With(map[string]any{"currency": kind}),
		rec:    metrics.OrNoop(rec),
		labels: map[string]string{"currency": kind},
	}
}

type instrumented struct {
	next   Currency
	log    logger.Logger
	rec    metrics.Recorder
	labels map[string]string
}

// Unwrap returns the decorated adapter.
func (i *instrumented) Unwrap() Currency { return i.next }

func (i *instrumented) Kind() types.CurrencyKind { return i.next.Kind() }

func (i *instrumented) NeedsFee() bool { return i.next.NeedsFee() }

func (i *instrumented) TxView(txID string) (*types.Tx, error) { return i.next.TxView(txID) }

func (i *instrumented) OwnerToAddress(owner string) (string, error) {
	return i.next.OwnerToAddress(owner)
}

func (i *instrumented) Signer() signer.Signer { return i.next.Signer() }

func (i *instrumented) ItemID(ctx context.Context, item []byte) (string, error) {
	start := time.Now()
	id, err := i.next.ItemID(ctx, item)
	i.observe("item_id", start, err, map[string]any{"id": id})
	return id, err
}

func (i *instrumented) Price(ctx context.Context) (string, error) {
	start := time.Now()
	p, err := i.next.Price(ctx)
	i.observe("price", start, err, map[string]any{"price": p})
	return p, err
}

func (i *instrumented) CurrentHeight(ctx context.Context) (*big.Int, error) {
	start := time.Now()
	h, err := i.next.CurrentHeight(ctx)
	i.observe("current_height", start, err, map[string]any{"height": h})
	if err == nil {
		f, _ := new(big.Float).SetInt(h).Float64()
		i.rec.SetGauge("height", f, i.labels)
	}
	return h, err
}

func (i *instrumented) EstimateFee(ctx context.Context, amount *big.Int, to string, multiplier *big.Rat) (*big.Int, error) {
	start := time.Now()
	fee, err := i.next.EstimateFee(ctx, amount, to, multiplier)
	i.observe("estimate_fee", start, err, map[string]any{"amount": amount, "to": to, "fee": fee})
	return fee, err
}

func (i *instrumented) CreateTx(ctx context.Context, amount *big.Int, to string, fee *big.Int) (*types.Tx, error) {
	start := time.Now()
	tx, err := i.next.CreateTx(ctx, amount, to, fee)
	fields := map[string]any{"amount": amount, "to": to, "fee": fee}
	if tx != nil {
		fields["tx_id"] = tx.ID
	}
	i.observe("create_tx", start, err, fields)
	return tx, err
}

func (i *instrumented) Broadcast(ctx context.Context, raw []byte) (bool, error) {
	start := time.Now()
	ok, err := i.next.Broadcast(ctx, raw)
	i.observe("broadcast", start, err, map[string]any{"accepted": ok, "size": len(raw)})
	return ok, err
}

// Close forwards to the decorated adapter when it holds connections.
func (i *instrumented) Close() {
	if c, ok := i.next.(interface{ Close() }); ok {
		c.Close()
	}
}

func (i *instrumented) observe(op string, start time.Time, err error, fields map[string]any) {
	elapsed := time.Since(start)
	i.rec.ObserveLatency(op, elapsed, i.labels)

	fields["duration"] = elapsed
	if err != nil {
		i.rec.IncCounter(op+"_error", i.labels)
		fields["error"] = err
		fields["retryable"] = types.IsRetryable(err)
		i.log.Warn(op+" failed", fields)
		return
	}
	i.rec.IncCounter(op+"_success", i.labels)
	i.log.Debug(op, fields)
}
