package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PriceFeed quotes the USD price of an asset.
type PriceFeed interface {
	Price(ctx context.Context, assetID string) (decimal.Decimal, error)
}

// CoinGeckoFeed reads prices from the CoinGecko simple price API.
type CoinGeckoFeed struct {
	baseURL    string
	httpClient *http.Client
}

var _ PriceFeed = (*CoinGeckoFeed)(nil)

func NewCoinGeckoFeed(baseURL string, httpClient *http.Client) *CoinGeckoFeed {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &CoinGeckoFeed{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// Price implements PriceFeed.
func (f *CoinGeckoFeed) Price(ctx context.Context, assetID string) (decimal.Decimal, error) {
	q := url.Values{}
	q.Set("ids", assetID)
	q.Set("vs_currencies", "usd")
	q.Set("precision", "full")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"/simple/price?"+q.Encode(), nil)
	if err != nil {
		return decimal.Zero, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return decimal.Zero, err
	}
	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, &httpStatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	// {"arweave":{"usd":12.34}} - decode numbers as decimals to keep every digit.
	var out map[string]map[string]decimal.Decimal
	if err := json.Unmarshal(body, &out); err != nil {
		return decimal.Zero, fmt.Errorf("invalid price response: %w", err)
	}

	quote, ok := out[assetID]["usd"]
	if !ok {
		return decimal.Zero, fmt.Errorf("no usd price for %q", assetID)
	}
	return quote, nil
}
