package alpaca

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"alphabot/internal/broker"
	"alphabot/internal/config"
	"alphabot/internal/logger"
	"alphabot/internal/market"
)

const (
	defaultBaseURL = "https://paper-api.alpaca.markets"
	defaultDataURL = "https://data.alpaca.markets"
)

// Client talks to the Alpaca trading and data APIs over plain REST.
// Every call is bounded by the shared http client timeout.
type Client struct {
	baseURL string
	dataURL string
	key     string
	secret  string
	http    *http.Client
}

var _ broker.Broker = (*Client)(nil)

func New(cfg config.AlpacaConfig) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	data := cfg.DataURL
	if data == "" {
		data = defaultDataURL
	}
	return &Client{
		baseURL: base,
		dataURL: data,
		key:     cfg.APIKey,
		secret:  cfg.SecretKey,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, rawURL string, body []byte) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("APCA-API-KEY-ID", c.key)
	req.Header.Set("APCA-API-SECRET-KEY", c.secret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return data, resp.StatusCode, nil
}

// GetBars fetches up to limit bars, oldest first. Missing data comes back
// as an empty series, not an error.
func (c *Client) GetBars(ctx context.Context, symbol, timeframe string, limit int) (market.Series, error) {
	q := url.Values{}
	q.Set("timeframe", timeframe)
	q.Set("limit", fmt.Sprintf("%d", limit))
	q.Set("adjustment", "split")
	q.Set("feed", "iex")
	u := fmt.Sprintf("%s/v2/stocks/%s/bars?%s", c.dataURL, symbol, q.Encode())

	body, status, err := c.do(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("bars %s: %w", symbol, err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("bars %s: status %d: %s", symbol, status, truncate(body))
	}

	var series market.Series
	for _, bar := range gjson.GetBytes(body, "bars").Array() {
		t, _ := time.Parse(time.RFC3339, bar.Get("t").String())
		series = append(series, market.Bar{
			Time:   t,
			Open:   bar.Get("o").Float(),
			High:   bar.Get("h").Float(),
			Low:    bar.Get("l").Float(),
			Close:  bar.Get("c").Float(),
			Volume: bar.Get("v").Float(),
		})
	}
	return series, nil
}

func (c *Client) GetAccount(ctx context.Context) (broker.Account, error) {
	body, status, err := c.do(ctx, http.MethodGet, c.baseURL+"/v2/account", nil)
	if err != nil {
		return broker.Account{}, fmt.Errorf("account: %w", err)
	}
	if status != http.StatusOK {
		return broker.Account{}, fmt.Errorf("account: status %d: %s", status, truncate(body))
	}
	j := gjson.ParseBytes(body)
	return broker.Account{
		PortfolioValue: j.Get("portfolio_value").Float(),
		Cash:           j.Get("cash").Float(),
		Equity:         j.Get("equity").Float(),
		LastEquity:     j.Get("last_equity").Float(),
		BuyingPower:    j.Get("buying_power").Float(),
	}, nil
}

func (c *Client) GetPositions(ctx context.Context) ([]broker.Position, error) {
	body, status, err := c.do(ctx, http.MethodGet, c.baseURL+"/v2/positions", nil)
	if err != nil {
		return nil, fmt.Errorf("positions: %w", err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("positions: status %d: %s", status, truncate(body))
	}
	var out []broker.Position
	for _, p := range gjson.ParseBytes(body).Array() {
		out = append(out, parsePosition(p))
	}
	return out, nil
}

// GetPosition returns nil for a symbol that is not held; Alpaca signals
// that with a 404.
func (c *Client) GetPosition(ctx context.Context, symbol string) (*broker.Position, error) {
	body, status, err := c.do(ctx, http.MethodGet, c.baseURL+"/v2/positions/"+symbol, nil)
	if err != nil {
		return nil, fmt.Errorf("position %s: %w", symbol, err)
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("position %s: status %d: %s", symbol, status, truncate(body))
	}
	pos := parsePosition(gjson.ParseBytes(body))
	return &pos, nil
}

func parsePosition(j gjson.Result) broker.Position {
	return broker.Position{
		Symbol:       j.Get("symbol").String(),
		Qty:          j.Get("qty").Float(),
		EntryPrice:   j.Get("avg_entry_price").Float(),
		CurrentPrice: j.Get("current_price").Float(),
		UnrealizedPL: j.Get("unrealized_pl").Float(),
	}
}

// PlaceBracketOrder submits a market entry with attached stop and limit
// legs. A rejection (422) returns a nil ack rather than an error so the
// engine can log and move on.
func (c *Client) PlaceBracketOrder(ctx context.Context, order broker.BracketOrder) (*broker.OrderAck, error) {
	clientID := uuid.NewString()
	payload := map[string]any{
		"symbol":          order.Symbol,
		"qty":             fmt.Sprintf("%d", order.Qty),
		"side":            order.Side,
		"type":            "market",
		"time_in_force":   "gtc",
		"order_class":     "bracket",
		"client_order_id": clientID,
		"stop_loss":       map[string]any{"stop_price": fmt.Sprintf("%.2f", order.StopPrice)},
		"take_profit":     map[string]any{"limit_price": fmt.Sprintf("%.2f", order.TargetPrice)},
	}
	body, _ := json.Marshal(payload)
	resp, status, err := c.do(ctx, http.MethodPost, c.baseURL+"/v2/orders", body)
	if err != nil {
		return nil, fmt.Errorf("bracket order %s: %w", order.Symbol, err)
	}
	if status == http.StatusUnprocessableEntity {
		logger.Warnf("alpaca: bracket order %s rejected: %s", order.Symbol, truncate(resp))
		return nil, nil
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("bracket order %s: status %d: %s", order.Symbol, status, truncate(resp))
	}
	j := gjson.ParseBytes(resp)
	return &broker.OrderAck{
		ID:            j.Get("id").String(),
		ClientOrderID: clientID,
		Symbol:        order.Symbol,
		Qty:           float64(order.Qty),
		Side:          order.Side,
	}, nil
}

func (c *Client) PlaceMarketOrder(ctx context.Context, symbol string, qty float64, side string) (*broker.OrderAck, error) {
	clientID := uuid.NewString()
	payload := map[string]any{
		"symbol":          symbol,
		"qty":             fmt.Sprintf("%g", qty),
		"side":            side,
		"type":            "market",
		"time_in_force":   "day",
		"client_order_id": clientID,
	}
	body, _ := json.Marshal(payload)
	resp, status, err := c.do(ctx, http.MethodPost, c.baseURL+"/v2/orders", body)
	if err != nil {
		return nil, fmt.Errorf("market order %s: %w", symbol, err)
	}
	if status == http.StatusUnprocessableEntity {
		logger.Warnf("alpaca: market order %s rejected: %s", symbol, truncate(resp))
		return nil, nil
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("market order %s: status %d: %s", symbol, status, truncate(resp))
	}
	j := gjson.ParseBytes(resp)
	return &broker.OrderAck{
		ID:            j.Get("id").String(),
		ClientOrderID: clientID,
		Symbol:        symbol,
		Qty:           qty,
		Side:          side,
	}, nil
}

// ClosePosition liquidates the whole position at market.
func (c *Client) ClosePosition(ctx context.Context, symbol string) error {
	body, status, err := c.do(ctx, http.MethodDelete, c.baseURL+"/v2/positions/"+symbol, nil)
	if err != nil {
		return fmt.Errorf("close %s: %w", symbol, err)
	}
	if status != http.StatusOK && status != http.StatusMultiStatus {
		return fmt.Errorf("close %s: status %d: %s", symbol, status, truncate(body))
	}
	return nil
}

func (c *Client) IsMarketOpen(ctx context.Context) (bool, error) {
	body, status, err := c.do(ctx, http.MethodGet, c.baseURL+"/v2/clock", nil)
	if err != nil {
		return false, fmt.Errorf("clock: %w", err)
	}
	if status != http.StatusOK {
		return false, fmt.Errorf("clock: status %d: %s", status, truncate(body))
	}
	return gjson.GetBytes(body, "is_open").Bool(), nil
}

func (c *Client) GetNews(ctx context.Context, symbols []string, limit int) ([]broker.Article, error) {
	q := url.Values{}
	q.Set("limit", fmt.Sprintf("%d", limit))
	q.Set("sort", "desc")
	if len(symbols) > 0 {
		joined := symbols[0]
		for _, s := range symbols[1:] {
			joined += "," + s
		}
		q.Set("symbols", joined)
	}
	u := fmt.Sprintf("%s/v1beta1/news?%s", c.dataURL, q.Encode())
	body, status, err := c.do(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("news: %w", err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("news: status %d: %s", status, truncate(body))
	}
	var out []broker.Article
	for _, a := range gjson.GetBytes(body, "news").Array() {
		created, _ := time.Parse(time.RFC3339, a.Get("created_at").String())
		var syms []string
		for _, s := range a.Get("symbols").Array() {
			syms = append(syms, s.String())
		}
		out = append(out, broker.Article{
			Headline:  a.Get("headline").String(),
			Summary:   a.Get("summary").String(),
			Source:    a.Get("source").String(),
			Symbols:   syms,
			CreatedAt: created,
		})
	}
	return out, nil
}

func (c *Client) GetLatestQuote(ctx context.Context, symbol string) (broker.Quote, error) {
	u := fmt.Sprintf("%s/v2/stocks/%s/quotes/latest?feed=iex", c.dataURL, symbol)
	body, status, err := c.do(ctx, http.MethodGet, u, nil)
	if err != nil {
		return broker.Quote{}, fmt.Errorf("quote %s: %w", symbol, err)
	}
	if status != http.StatusOK {
		return broker.Quote{}, fmt.Errorf("quote %s: status %d: %s", symbol, status, truncate(body))
	}
	bid := gjson.GetBytes(body, "quote.bp").Float()
	ask := gjson.GetBytes(body, "quote.ap").Float()
	q := broker.Quote{Bid: bid, Ask: ask}
	if bid > 0 && ask > 0 {
		q.Mid = (bid + ask) / 2
	}
	return q, nil
}

// GetTopMovers pulls the day's biggest gainers from the screener API.
func (c *Client) GetTopMovers(ctx context.Context, n int) ([]string, error) {
	u := fmt.Sprintf("%s/v1beta1/screener/stocks/movers?top=%d", c.dataURL, n)
	body, status, err := c.do(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("movers: %w", err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("movers: status %d: %s", status, truncate(body))
	}
	var out []string
	for _, g := range gjson.GetBytes(body, "gainers").Array() {
		out = append(out, g.Get("symbol").String())
	}
	return out, nil
}

func truncate(b []byte) string {
	const max = 200
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
