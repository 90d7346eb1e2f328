package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/dnldd/dayone/shared"
	"github.com/tidwall/gjson"
)

const (
	// BaseURL is the base url for the FMP api.
	BaseURL = "https://financialmodelingprep.com/stable"
	// VolatilityIndexSymbol is the symbol used for volatility level readings.
	VolatilityIndexSymbol = "^VIX"
)

// FMPConfig represents the configuration for the FMP client.
type FMPConfig struct {
	// APIkey is the FMP API Key.
	APIKey string
	// BaseURL is the base url of the FMP service.
	BaseURL string
}

// FMPClient represents the Financial Modeling Preparation (FMP) API client.
type FMPClient struct {
	cfg   *FMPConfig
	httpc http.Client
	buf   *bytes.Buffer
}

// Ensure the FMPClient implements the MarketSource interface.
var _ shared.MarketSource = (*FMPClient)(nil)

// NewFMPClient instantiates a new FMP client.
func NewFMPClient(cfg *FMPConfig) *FMPClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = BaseURL
	}

	return &FMPClient{
		cfg:   cfg,
		httpc: http.Client{Timeout: time.Second * 5},
		buf:   bytes.NewBuffer(make([]byte, 0, 512)),
	}
}

// formURL creates full urls including parameters for the api.
func (c *FMPClient) formURL(path string, params string) string {
	c.buf.WriteString(c.cfg.BaseURL)
	c.buf.WriteString(path)
	c.buf.WriteString("?")
	c.buf.WriteString(params)
	url := c.buf.String()
	c.buf.Reset()

	return url
}

// fetch issues a get request for the provided url and parses the response body.
func (c *FMPClient) fetch(ctx context.Context, formedURL string) (*gjson.Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, formedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", formedURL, err)
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: status %d", formedURL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	data := gjson.ParseBytes(body)

	return &data, nil
}

// FetchQuote fetches the last traded price for the provided symbol.
func (c *FMPClient) FetchQuote(ctx context.Context, symbol string) (float64, error) {
	const quotePath = "/quote-short"

	params := url.Values{}
	params.Add("symbol", symbol)
	params.Add("apikey", c.cfg.APIKey)

	data, err := c.fetch(ctx, c.formURL(quotePath, params.Encode()))
	if err != nil {
		return 0, err
	}

	quotes := data.Array()
	if len(quotes) == 0 {
		return 0, fmt.Errorf("no quote returned for %s", symbol)
	}

	price := quotes[0].Get("price").Float()
	if price <= 0 {
		return 0, fmt.Errorf("invalid quote price for %s: %f", symbol, price)
	}

	return price, nil
}

// FetchDailyCloses fetches up to n most recent daily closes for the provided
// symbol, ordered oldest first.
func (c *FMPClient) FetchDailyCloses(ctx context.Context, symbol string, n int) ([]float64, error) {
	const dailyPath = "/historical-price-eod/light"

	params := url.Values{}
	params.Add("symbol", symbol)
	params.Add("apikey", c.cfg.APIKey)

	data, err := c.fetch(ctx, c.formURL(dailyPath, params.Encode()))
	if err != nil {
		return nil, err
	}

	// The api returns most recent bars first.
	bars := data.Array()
	if len(bars) == 0 {
		return nil, fmt.Errorf("no daily closes returned for %s", symbol)
	}
	if len(bars) > n {
		bars = bars[:n]
	}

	closes := make([]float64, len(bars))
	for idx := range bars {
		closes[len(bars)-1-idx] = bars[idx].Get("price").Float()
	}

	return closes, nil
}

// VolatilityLevel fetches the current volatility index level.
func (c *FMPClient) VolatilityLevel(ctx context.Context) (float64, error) {
	return c.FetchQuote(ctx, VolatilityIndexSymbol)
}

// TrailingReturn fetches the fractional return of the symbol over the provided
// number of trading days.
func (c *FMPClient) TrailingReturn(ctx context.Context, symbol string, days int) (float64, error) {
	closes, err := c.FetchDailyCloses(ctx, symbol, days)
	if err != nil {
		return 0, err
	}

	first := closes[0]
	last := closes[len(closes)-1]
	if first <= 0 {
		return 0, fmt.Errorf("invalid first close for %s: %f", symbol, first)
	}

	return last/first - 1, nil
}
