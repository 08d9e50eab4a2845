package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"StockHound/internal/model"
)

// DefaultYahooURL is the public Yahoo Finance chart endpoint host.
const DefaultYahooURL = "https://query1.finance.yahoo.com"

// YahooFetcher implements Fetcher using Yahoo Finance public API.
type YahooFetcher struct {
	BaseURL string
	Client  *http.Client
}

// NewYahooFetcher creates a new Yahoo Finance fetcher.
func NewYahooFetcher(proxyURL string) *YahooFetcher {
	return &YahooFetcher{
		BaseURL: DefaultYahooURL,
		Client:  newHTTPClient(proxyURL),
	}
}

func (f *YahooFetcher) Name() string { return "yahoo" }

// yahooChart is the response structure from Yahoo Finance chart API.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				LongName           string  `json:"longName"`
				ShortName          string  `json:"shortName"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
			} `json:"meta"`
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

func at(values []interface{}, i int) interface{} {
	if i < len(values) {
		return values[i]
	}
	return nil
}

func (f *YahooFetcher) fetchChart(ctx context.Context, symbol string, q url.Values) (*yahooChart, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?%s", f.BaseURL, url.PathEscape(symbol), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yahoo fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("yahoo read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo: status %d, body: %s", resp.StatusCode, string(body))
	}

	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("yahoo decode: %w", err)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 {
		return nil, fmt.Errorf("yahoo: no data returned")
	}
	return &chart, nil
}

func chartBars(symbol string, chart *yahooChart) []model.OHLCV {
	result := chart.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil
	}
	quote := result.Indicators.Quote[0]
	bars := make([]model.OHLCV, 0, len(result.Timestamp))

	for i, ts := range result.Timestamp {
		o := toFloat(at(quote.Open, i))
		h := toFloat(at(quote.High, i))
		l := toFloat(at(quote.Low, i))
		c := toFloat(at(quote.Close, i))
		if o == 0 && h == 0 && l == 0 && c == 0 {
			continue // skip null bars (holidays etc.)
		}
		bars = append(bars, model.OHLCV{
			Symbol: symbol,
			Time:   time.Unix(ts, 0).UTC(),
			Open:   o,
			High:   h,
			Low:    l,
			Close:  c,
			Volume: toFloat(at(quote.Volume, i)),
		})
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return bars
}

func (f *YahooFetcher) HistoricalBars(ctx context.Context, symbol string, start, end time.Time, periodDays int) ([]model.OHLCV, error) {
	q := url.Values{
		"interval": {"1d"},
		"period1":  {strconv.FormatInt(start.Unix(), 10)},
		"period2":  {strconv.FormatInt(end.Unix(), 10)},
	}
	chart, err := f.fetchChart(ctx, symbol, q)
	if err != nil {
		return nil, err
	}
	return trimBars(chartBars(symbol, chart), periodDays), nil
}

func (f *YahooFetcher) LatestTrade(ctx context.Context, symbol string) (model.Trade, error) {
	chart, err := f.fetchChart(ctx, symbol, url.Values{"interval": {"1d"}, "range": {"1d"}})
	if err != nil {
		return model.Trade{}, err
	}
	bars := chartBars(symbol, chart)
	if len(bars) == 0 {
		return model.Trade{}, fmt.Errorf("yahoo: no price data")
	}
	last := bars[len(bars)-1]
	price := chart.Chart.Result[0].Meta.RegularMarketPrice
	if price == 0 {
		price = last.Close
	}
	return model.Trade{Symbol: symbol, Price: price, Size: last.Volume}, nil
}

// CompanyName reads the name from the chart metadata.
func (f *YahooFetcher) CompanyName(ctx context.Context, symbol string) (string, error) {
	chart, err := f.fetchChart(ctx, symbol, url.Values{"interval": {"1d"}, "range": {"1d"}})
	if err != nil {
		return "", err
	}
	meta := chart.Chart.Result[0].Meta
	if meta.LongName != "" {
		return meta.LongName, nil
	}
	if meta.ShortName != "" {
		return meta.ShortName, nil
	}
	return "", fmt.Errorf("yahoo: no name for %s", symbol)
}
