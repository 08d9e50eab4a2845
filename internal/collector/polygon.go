package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"StockHound/internal/model"
)

// DefaultPolygonURL is the public Polygon.io REST endpoint.
const DefaultPolygonURL = "https://api.polygon.io"

// PolygonFetcher implements Fetcher using the Polygon.io REST API.
type PolygonFetcher struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
	// PrevClose quotes the previous session's close instead of the last
	// trade, for API plans without trade access.
	PrevClose bool
}

// NewPolygonFetcher creates a new fetcher with optional proxy support.
func NewPolygonFetcher(baseURL, apiKey, proxyURL string) *PolygonFetcher {
	if baseURL == "" {
		baseURL = DefaultPolygonURL
	}
	return &PolygonFetcher{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client:  newHTTPClient(proxyURL),
	}
}

func newHTTPClient(proxyURL string) *http.Client {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &http.Client{
		Timeout:   30 * time.Second,
		Transport: transport,
	}
}

func (f *PolygonFetcher) Name() string { return "polygon" }

// polygonAgg is one aggregate bar. T is the bar start in Unix milliseconds.
type polygonAgg struct {
	Open   float64 `json:"o"`
	High   float64 `json:"h"`
	Low    float64 `json:"l"`
	Close  float64 `json:"c"`
	Volume float64 `json:"v"`
	T      int64   `json:"t"`
}

type polygonAggs struct {
	Status  string       `json:"status"`
	Error   string       `json:"error"`
	Results []polygonAgg `json:"results"`
}

type polygonLastTrade struct {
	Status  string `json:"status"`
	Error   string `json:"error"`
	Results *struct {
		Price float64 `json:"p"`
		Size  float64 `json:"s"`
	} `json:"results"`
}

type polygonTicker struct {
	Status  string `json:"status"`
	Results *struct {
		Name string `json:"name"`
	} `json:"results"`
}

func (f *PolygonFetcher) LatestTrade(ctx context.Context, symbol string) (model.Trade, error) {
	if f.PrevClose {
		return f.previousClose(ctx, symbol)
	}
	var resp polygonLastTrade
	if err := f.get(ctx, "/v2/last/trade/"+url.PathEscape(symbol), nil, &resp); err != nil {
		return model.Trade{}, err
	}
	if resp.Results == nil {
		return model.Trade{}, fmt.Errorf("polygon: no trade for %s (status %s)", symbol, resp.Status)
	}
	return model.Trade{Symbol: symbol, Price: resp.Results.Price, Size: resp.Results.Size}, nil
}

func (f *PolygonFetcher) previousClose(ctx context.Context, symbol string) (model.Trade, error) {
	var resp polygonAggs
	q := url.Values{"adjusted": {"true"}}
	if err := f.get(ctx, "/v2/aggs/ticker/"+url.PathEscape(symbol)+"/prev", q, &resp); err != nil {
		return model.Trade{}, err
	}
	if len(resp.Results) == 0 {
		return model.Trade{}, fmt.Errorf("polygon: no data available for %s", symbol)
	}
	r := resp.Results[0]
	return model.Trade{Symbol: symbol, Price: r.Close, Size: r.Volume}, nil
}

func (f *PolygonFetcher) HistoricalBars(ctx context.Context, symbol string, start, end time.Time, periodDays int) ([]model.OHLCV, error) {
	path := fmt.Sprintf("/v2/aggs/ticker/%s/range/1/day/%s/%s",
		url.PathEscape(symbol), start.Format("2006-01-02"), end.Format("2006-01-02"))
	q := url.Values{
		"adjusted": {"true"},
		"sort":     {"asc"},
		"limit":    {"50000"},
	}
	var resp polygonAggs
	if err := f.get(ctx, path, q, &resp); err != nil {
		return nil, err
	}

	bars := make([]model.OHLCV, len(resp.Results))
	for i, a := range resp.Results {
		bars[i] = model.OHLCV{
			Symbol: symbol,
			Time:   time.UnixMilli(a.T).UTC(),
			Open:   a.Open,
			High:   a.High,
			Low:    a.Low,
			Close:  a.Close,
			Volume: a.Volume,
		}
	}
	// Ensure chronological order
	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return trimBars(bars, periodDays), nil
}

// CompanyName resolves the ticker's registered name.
func (f *PolygonFetcher) CompanyName(ctx context.Context, symbol string) (string, error) {
	var resp polygonTicker
	if err := f.get(ctx, "/v3/reference/tickers/"+url.PathEscape(symbol), nil, &resp); err != nil {
		return "", err
	}
	if resp.Results == nil || resp.Results.Name == "" {
		return "", fmt.Errorf("polygon: no ticker details for %s", symbol)
	}
	return resp.Results.Name, nil
}

func (f *PolygonFetcher) get(ctx context.Context, path string, q url.Values, out any) error {
	endpoint := f.BaseURL + path
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	if f.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.APIKey)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return fmt.Errorf("polygon request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("polygon read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("polygon: status %d, body: %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("polygon decode: %w", err)
	}
	return nil
}
