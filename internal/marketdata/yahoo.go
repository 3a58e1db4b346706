package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/dansontsui/aistock-analysis/internal/metrics"
	"github.com/dansontsui/aistock-analysis/internal/models"
)

// YahooClient fetches daily bars and spot prices from the Yahoo Finance chart
// API. Calls are serialized with a fixed inter-call delay: the upstream is
// rate limited and this client is polite rather than fast.
type YahooClient struct {
	client *resty.Client
	cache  PriceCache
	ttl    time.Duration
	delay  time.Duration

	mu       sync.Mutex
	lastCall time.Time
}

// NewYahooClient creates a client against the given base URL, with an
// optional price cache (nil disables caching).
func NewYahooClient(baseURL string, delay time.Duration, cache PriceCache, priceTTL time.Duration) *YahooClient {
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(30 * time.Second)
	client.SetHeader("User-Agent", "Mozilla/5.0")

	return &YahooClient{
		client: client,
		cache:  cache,
		ttl:    priceTTL,
		delay:  delay,
	}
}

// alternates expands a canonical code into the market symbols to try, in
// order. Bare Taiwan numeric codes resolve under more than one exchange
// suffix, so both are attempted before declaring the symbol unavailable.
func alternates(code string) []string {
	c := models.CanonicalCode(code)
	if c == "" {
		return nil
	}
	if strings.IndexFunc(c, func(r rune) bool { return r < '0' || r > '9' }) == -1 {
		return []string{c + ".TW", c + ".TWO"}
	}
	return []string{c}
}

// History fetches roughly a year of daily bars for the code, trying each
// symbol alternate in turn.
func (y *YahooClient) History(ctx context.Context, code string) (*models.PriceSeries, error) {
	var lastErr error
	for _, symbol := range alternates(code) {
		bars, err := y.fetchChart(ctx, symbol, "1d", "1y")
		if err != nil {
			lastErr = err
			continue
		}
		return &models.PriceSeries{
			Code:      models.CanonicalCode(code),
			Bars:      bars,
			FetchedAt: time.Now(),
		}, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no symbol alternates for %q", code)
	}
	return nil, fmt.Errorf("history unavailable for %s: %w", code, lastErr)
}

// Price returns the latest close for the code, or 0 when unavailable.
func (y *YahooClient) Price(ctx context.Context, code string) float64 {
	canonical := models.CanonicalCode(code)

	if y.cache != nil {
		if price, err := y.cache.GetPrice(ctx, canonical); err == nil && price > 0 {
			return price
		}
	}

	for _, symbol := range alternates(code) {
		bars, err := y.fetchChart(ctx, symbol, "1d", "5d")
		if err != nil || len(bars) == 0 {
			continue
		}
		price := bars[len(bars)-1].Close
		if price <= 0 {
			continue
		}
		if y.cache != nil {
			if err := y.cache.SetPrice(ctx, canonical, price, y.ttl); err != nil {
				log.Printf("[Market] price cache write failed for %s: %v", canonical, err)
			}
		}
		return price
	}

	log.Printf("[Market] price unavailable for %s", code)
	return 0
}

// yahooChart is the response structure of the Yahoo Finance chart API.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []interface{} `json:"open"`
					High   []interface{} `json:"high"`
					Low    []interface{} `json:"low"`
					Close  []interface{} `json:"close"`
					Volume []interface{} `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func toFloat(v interface{}) float64 {
	if v == nil {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}

func (y *YahooClient) fetchChart(ctx context.Context, symbol, interval, rng string) ([]models.Bar, error) {
	bars, err := y.doFetchChart(ctx, symbol, interval, rng)
	if err != nil {
		metrics.MarketRequests.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.MarketRequests.WithLabelValues("ok").Inc()
	return bars, nil
}

func (y *YahooClient) doFetchChart(ctx context.Context, symbol, interval, rng string) ([]models.Bar, error) {
	y.throttle()

	resp, err := y.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"interval": interval,
			"range":    rng,
		}).
		Get("/v8/finance/chart/" + url.PathEscape(symbol))
	if err != nil {
		return nil, fmt.Errorf("chart fetch %s: %w", symbol, err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("chart fetch %s: status %d", symbol, resp.StatusCode())
	}

	var chart yahooChart
	if err := json.Unmarshal(resp.Body(), &chart); err != nil {
		return nil, fmt.Errorf("chart decode %s: %w", symbol, err)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("chart api error %s: %s", symbol, chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Timestamp) == 0 {
		return nil, fmt.Errorf("chart fetch %s: no data", symbol)
	}

	result := chart.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("chart fetch %s: no quote block", symbol)
	}
	quote := result.Indicators.Quote[0]

	// The quote arrays can come back shorter than the timestamp axis; only
	// index what every array covers.
	n := len(result.Timestamp)
	for _, arr := range [][]interface{}{quote.Open, quote.High, quote.Low, quote.Close, quote.Volume} {
		if len(arr) < n {
			n = len(arr)
		}
	}
	bars := make([]models.Bar, 0, n)

	for i, ts := range result.Timestamp[:n] {
		o := toFloat(quote.Open[i])
		h := toFloat(quote.High[i])
		l := toFloat(quote.Low[i])
		c := toFloat(quote.Close[i])
		if o == 0 && h == 0 && l == 0 && c == 0 {
			continue // null bars on holidays
		}
		bars = append(bars, models.Bar{
			Date:   time.Unix(ts, 0).UTC(),
			Open:   o,
			High:   h,
			Low:    l,
			Close:  c,
			Volume: toFloat(quote.Volume[i]),
		})
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return bars, nil
}

// throttle enforces the fixed inter-call delay across goroutines.
func (y *YahooClient) throttle() {
	y.mu.Lock()
	defer y.mu.Unlock()
	if wait := y.delay - time.Since(y.lastCall); wait > 0 {
		time.Sleep(wait)
	}
	y.lastCall = time.Now()
}
