package clients

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vitwit/currency/logger"
	"github.com/vitwit/currency/metrics"
	"github.com/vitwit/currency/types"
)

func TestInstrument(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := metrics.NewPrometheusRecorder(reg)
	core, logs := observer.New(zap.DebugLevel)

	backend := newFakeEthBackend()
	inner := newTestEthereumClient(t, backend, types.ClientConfig{})
	c := Instrument(inner, logger.FromZap(zap.New(core)), rec)

	assert.Equal(t, types.CurrencyEthereum, c.Kind())
	assert.True(t, c.NeedsFee())

	ctx := context.Background()
	_, err := c.EstimateFee(ctx, big.NewInt(1), recipientAddress, nil)
	require.NoError(t, err)

	backend.gasErr = errors.New("boom")
	_, err = c.EstimateFee(ctx, big.NewInt(1), recipientAddress, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrProviderError), "errors pass through unchanged")

	assert.Equal(t, 1.0, testutil.ToFloat64(rec.Counter().WithLabelValues("estimate_fee_success", "ethereum")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.Counter().WithLabelValues("estimate_fee_error", "ethereum")))

	warnings := logs.FilterMessage("estimate_fee failed").All()
	require.Len(t, warnings, 1)
	assert.Equal(t, "ethereum", warnings[0].ContextMap()["currency"])

	h, err := c.CurrentHeight(ctx)
	require.NoError(t, err)
	assert.Equal(t, float64(h.Int64()), testutil.ToFloat64(rec.Gauge().WithLabelValues("height", "ethereum")))

	closer, ok := c.(interface{ Close() })
	require.True(t, ok)
	closer.Close()
}
