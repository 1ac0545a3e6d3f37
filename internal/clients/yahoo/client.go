package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/risk-engine/internal/modules/marketdata"
)

const (
	chartBaseURL   = "https://query1.finance.yahoo.com/v8/finance/chart/"
	defaultRetries = 3
)

// Client fetches daily OHLCV bars from the Yahoo Finance chart API
type Client struct {
	client  *http.Client
	retries int
	log     zerolog.Logger
}

// NewClient creates a new Yahoo Finance client
func NewClient(log zerolog.Logger) *Client {
	return &Client{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		retries: defaultRetries,
		log:     log.With().Str("client", "yahoo").Logger(),
	}
}

// GetDailyBars fetches daily bars for a symbol over the given range
// (1mo, 3mo, 6mo, 1y, 2y, 5y, max). Transient failures are retried with
// exponential backoff.
func (c *Client) GetDailyBars(ctx context.Context, symbol, rng string) ([]marketdata.Bar, error) {
	if rng == "" {
		rng = "1y"
	}

	var lastErr error
	for attempt := 0; attempt < c.retries; attempt++ {
		bars, err := c.fetchChart(ctx, symbol, rng)
		if err == nil {
			return bars, nil
		}
		lastErr = err

		if attempt < c.retries-1 {
			wait := time.Duration(1<<uint(attempt)) * time.Second
			c.log.Warn().Err(err).
				Str("symbol", symbol).
				Int("attempt", attempt+1).
				Dur("wait", wait).
				Msg("Failed to fetch bars, retrying")

			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	return nil, fmt.Errorf("failed after %d attempts: %w", c.retries, lastErr)
}

// chartResponse is the subset of the chart API payload we consume
type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []float64 `json:"open"`
					High   []float64 `json:"high"`
					Low    []float64 `json:"low"`
					Close  []float64 `json:"close"`
					Volume []int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error interface{} `json:"error"`
	} `json:"chart"`
}

func (c *Client) fetchChart(ctx context.Context, symbol, rng string) ([]marketdata.Bar, error) {
	params := url.Values{}
	params.Add("interval", "1d")
	params.Add("range", rng)

	reqURL := chartBaseURL + url.QueryEscape(symbol) + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// The chart API rejects requests without a browser-like user agent
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chart: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("chart API returned status %d: %s", resp.StatusCode, string(body))
	}

	var result chartResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if result.Chart.Error != nil {
		return nil, fmt.Errorf("chart API error: %v", result.Chart.Error)
	}

	if len(result.Chart.Result) == 0 || len(result.Chart.Result[0].Indicators.Quote) == 0 {
		c.log.Warn().Str("symbol", symbol).Msg("No chart data returned")
		return []marketdata.Bar{}, nil
	}

	chart := result.Chart.Result[0]
	quote := chart.Indicators.Quote[0]

	bars := make([]marketdata.Bar, 0, len(chart.Timestamp))
	for i, ts := range chart.Timestamp {
		if i >= len(quote.Open) || i >= len(quote.High) || i >= len(quote.Low) || i >= len(quote.Close) {
			continue
		}

		// the API pads gaps with all-zero rows
		if quote.Open[i] == 0 && quote.High[i] == 0 && quote.Low[i] == 0 && quote.Close[i] == 0 {
			continue
		}

		bar := marketdata.Bar{
			Date:  time.Unix(ts, 0).UTC().Format("2006-01-02"),
			Open:  quote.Open[i],
			High:  quote.High[i],
			Low:   quote.Low[i],
			Close: quote.Close[i],
		}
		if i < len(quote.Volume) && quote.Volume[i] > 0 {
			v := quote.Volume[i]
			bar.Volume = &v
		}

		bars = append(bars, bar)
	}

	c.log.Info().
		Str("symbol", symbol).
		Str("range", rng).
		Int("bars", len(bars)).
		Msg("Fetched daily bars")

	return bars, nil
}
