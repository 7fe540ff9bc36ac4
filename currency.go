// Package currency registers chain-agnostic currency adapters for Arweave,
// Solana, Ethereum, ERC-20 tokens and Cosmos, and funds transfers through them.
package currency

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/vitwit/currency/clients"
	"github.com/vitwit/currency/logger"
	"github.com/vitwit/currency/metrics"
	"github.com/vitwit/currency/settlement"
	"github.com/vitwit/currency/signer"
	"github.com/vitwit/currency/store"
	"github.com/vitwit/currency/types"
)

// Registry holds at most one adapter per currency kind.
type Registry struct {
	mu       sync.RWMutex
	adapters map[types.CurrencyKind]clients.Currency

	logger     logger.Logger
	metrics    metrics.Recorder
	timeout    time.Duration
	store      store.TxStore
	ownsStore  bool
	clientOpts []clients.Option

	settlement *settlement.Service
}

var _ settlement.Resolver = (*Registry)(nil)

// New creates an empty registry with the given configuration
func New(config *types.Config, opts ...Option) *Registry {
	r := &Registry{
		adapters: make(map[types.CurrencyKind]clients.Currency),
		timeout:  types.DefaultTimeout,
	}
	if config != nil {
		if config.DefaultTimeout > 0 {
			r.timeout = config.DefaultTimeout
		}
		if config.LogLevel != "" {
			r.logger = logger.NewZapLogger(config.LogLevel)
		}
		if config.EnableMetrics {
			r.metrics = metrics.NewPrometheusRecorder(nil)
		}
		if config.PriceFeedURL != "" {
			r.clientOpts = append(r.clientOpts, clients.WithPriceFeed(clients.NewCoinGeckoFeed(config.PriceFeedURL, nil)))
		}
	}

	for _, opt := range opts {
		opt(r)
	}
	r.logger = logger.OrNoop(r.logger)
	r.metrics = metrics.OrNoop(r.metrics)

	r.settlement = r.newSettlement()
	return r
}

// NewWithDefaults creates a registry with default configuration
func NewWithDefaults(opts ...Option) *Registry {
	return New(&types.Config{
		DefaultTimeout: types.DefaultTimeout,
		LogLevel:       "info",
	}, opts...)
}

// NewFromConfig builds a registry and adds every currency listed in config.
// When config.Database is set the SQLite store is opened and owned by the registry.
func NewFromConfig(ctx context.Context, config *types.Config, opts ...Option) (*Registry, error) {
	r := New(config, opts...)

	if config == nil {
		return r, nil
	}

	if config.Database != "" && r.store == nil {
		db, err := store.Open(ctx, config.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to open transaction store: %w", err)
		}
		r.store = db
		r.ownsStore = true
		r.settlement = r.newSettlement()
	}

	for _, cc := range config.Currencies {
		s, err := signer.FromConfig(cc)
		if err != nil {
			r.Close()
			return nil, err
		}
		if err := r.AddCurrency(cc, s); err != nil {
			r.Close()
			return nil, err
		}
	}

	return r, nil
}

func (r *Registry) newSettlement() *settlement.Service {
	opts := []settlement.Option{
		settlement.WithLogger(r.logger),
		settlement.WithMetrics(r.metrics),
	}
	if r.store != nil {
		opts = append(opts, settlement.WithStore(r.store))
	}
	return settlement.NewService(r, r.timeout, opts...)
}

// AddCurrency creates the adapter for config.Currency and registers it.
func (r *Registry) AddCurrency(config types.ClientConfig, s signer.Signer) error {
	c, err := clients.New(config, s, r.clientOpts...)
	if err != nil {
		return fmt.Errorf("failed to create %s adapter: %w", config.Currency, err)
	}
	if err := r.Register(c); err != nil {
		closeAdapter(c)
		return err
	}

	r.logger.Info("currency added", map[string]any{
		"currency":  config.Currency.String(),
		"needs_fee": c.NeedsFee(),
	})
	return nil
}

// Register adds a ready adapter. Each kind may be registered once.
func (r *Registry) Register(c clients.Currency) error {
	kind := c.Kind()
	if !kind.IsValid() {
		return types.NewCurrencyError(types.ErrCodeUnsupportedCurrency, kind, "unsupported currency", nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.adapters[kind]; ok {
		return types.NewCurrencyError(types.ErrCodeConfigError, kind, "currency already registered", nil)
	}
	r.adapters[kind] = clients.Instrument(c, r.logger, r.metrics)
	return nil
}

// Currency returns the adapter registered for kind.
func (r *Registry) Currency(kind types.CurrencyKind) (clients.Currency, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.adapters[kind]
	if !ok {
		return nil, types.NewCurrencyError(types.ErrCodeUnsupportedCurrency, kind, "currency not configured", nil)
	}
	return c, nil
}

// Lookup resolves a canonical currency name such as "solana".
func (r *Registry) Lookup(name string) (clients.Currency, error) {
	kind, err := types.ParseCurrencyKind(name)
	if err != nil {
		return nil, err
	}
	return r.Currency(kind)
}

// Kinds lists the registered currencies ordered by discriminant.
func (r *Registry) Kinds() []types.CurrencyKind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]types.CurrencyKind, 0, len(r.adapters))
	for k := range r.adapters {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// IsCurrencySupported checks if an adapter is registered for kind
func (r *Registry) IsCurrencySupported(kind types.CurrencyKind) bool {
	_, err := r.Currency(kind)
	return err == nil
}

// Fund sends a single transfer
func (r *Registry) Fund(ctx context.Context, req settlement.FundRequest) (*settlement.FundResult, error) {
	return r.settlement.Fund(ctx, req)
}

// BatchFund sends multiple transfers concurrently
func (r *Registry) BatchFund(ctx context.Context, reqs []settlement.FundRequest) ([]*settlement.FundResult, error) {
	if len(reqs) == 0 {
		return nil, types.NewCurrencyError(types.ErrCodeInvalidArgument, 0, "no fund requests", nil)
	}
	return r.settlement.BatchFund(ctx, reqs)
}

// Quote prices a prospective transfer without signing anything
func (r *Registry) Quote(
	ctx context.Context,
	kind types.CurrencyKind,
	amount *big.Int,
	to string,
	multiplier *big.Rat,
) (*settlement.Quote, error) {
	return r.settlement.Quote(ctx, kind, amount, to, multiplier)
}

// Transactions lists the most recent recorded transfers for kind.
func (r *Registry) Transactions(ctx context.Context, kind types.CurrencyKind, limit int) ([]store.Record, error) {
	if r.store == nil {
		return nil, types.NewCurrencyError(types.ErrCodeConfigError, kind, "no transaction store configured", nil)
	}
	return r.store.ListByCurrency(ctx, kind, limit)
}

// Close releases every adapter connection and the store when the registry opened it.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for kind, c := range r.adapters {
		closeAdapter(c)
		delete(r.adapters, kind)
	}
	if r.ownsStore && r.store != nil {
		if err := r.store.Close(); err != nil {
			r.logger.Warn("failed to close transaction store", map[string]any{"error": err})
		}
		r.store = nil
	}
}

func closeAdapter(c clients.Currency) {
	if cl, ok := c.(interface{ Close() }); ok {
		cl.Close()
	}
}

// Version information
const Version = "1.0.0"

// GetVersion returns version information
func GetVersion() map[string]interface{} {
	names := make([]string, 0, len(types.AllCurrencyKinds()))
	for _, k := range types.AllCurrencyKinds() {
		names = append(names, k.String())
	}
	return map[string]interface{}{
		"library_version":      Version,
		"supported_currencies": names,
	}
}
