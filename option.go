package currency

import (
	"time"

	"github.com/vitwit/currency/clients"
	"github.com/vitwit/currency/logger"
	"github.com/vitwit/currency/metrics"
	"github.com/vitwit/currency/store"
)

type Option func(*Registry)

func WithLogger(l logger.Logger) Option {
	return func(r *Registry) {
		r.logger = l
	}
}

func WithMetrics(m metrics.Recorder) Option {
	return func(r *Registry) {
		r.metrics = m
	}
}

func WithTimeout(t time.Duration) Option {
	return func(r *Registry) {
		r.timeout = t
	}
}

// WithStore records every funded transfer in s. The caller keeps ownership of s.
func WithStore(s store.TxStore) Option {
	return func(r *Registry) {
		r.store = s
	}
}

// WithClientOptions is passed to every adapter created by AddCurrency.
func WithClientOptions(opts ...clients.Option) Option {
	return func(r *Registry) {
		r.clientOpts = append(r.clientOpts, opts...)
	}
}
