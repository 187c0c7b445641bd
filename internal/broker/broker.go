package broker

import (
	"context"
	"time"

	"alphabot/internal/market"
)

// Timeframes understood by the data API.
const (
	TimeframeIntraday = "15Min"
	TimeframeDaily    = "1Day"
)

// Account is a point-in-time account snapshot.
type Account struct {
	PortfolioValue float64
	Cash           float64
	Equity         float64
	LastEquity     float64
	BuyingPower    float64
}

// Position is broker-owned ground truth for a held symbol, fetched fresh
// each cycle and never mutated by the core.
type Position struct {
	Symbol       string
	Qty          float64
	EntryPrice   float64
	CurrentPrice float64
	UnrealizedPL float64
}

// Article is one news item for a symbol.
type Article struct {
	Headline  string
	Summary   string
	Source    string
	Symbols   []string
	CreatedAt time.Time
}

// Quote is the latest bid/ask for a symbol.
type Quote struct {
	Bid float64
	Ask float64
	Mid float64
}

// BracketOrder is an entry order with an attached stop/target pair.
// Qty must be whole shares; StopPrice/TargetPrice must already be rounded
// per exchange rules (stop down, target up, to the cent).
type BracketOrder struct {
	Symbol      string
	Qty         int
	Side        string // "buy" or "sell"
	StopPrice   float64
	TargetPrice float64
}

// OrderAck acknowledges a submitted order. A nil ack from the broker
// means the order was rejected; callers must tolerate it.
type OrderAck struct {
	ID            string
	ClientOrderID string
	Symbol        string
	Qty           float64
	Side          string
}

// Broker is the narrow capability set the core needs from any brokerage.
// Implementations must bound every call with an HTTP timeout; the core has
// no other defense against a hung collaborator.
type Broker interface {
	// GetBars returns up to limit bars, oldest first. An empty series
	// signals no data; callers skip the symbol rather than erroring.
	GetBars(ctx context.Context, symbol, timeframe string, limit int) (market.Series, error)

	GetAccount(ctx context.Context) (Account, error)
	GetPositions(ctx context.Context) ([]Position, error)
	// GetPosition returns nil when the symbol is not held.
	GetPosition(ctx context.Context, symbol string) (*Position, error)

	// PlaceBracketOrder returns nil on broker-side rejection.
	PlaceBracketOrder(ctx context.Context, order BracketOrder) (*OrderAck, error)
	// PlaceMarketOrder sells or buys without a bracket (used for trims).
	PlaceMarketOrder(ctx context.Context, symbol string, qty float64, side string) (*OrderAck, error)
	ClosePosition(ctx context.Context, symbol string) error

	IsMarketOpen(ctx context.Context) (bool, error)
	GetNews(ctx context.Context, symbols []string, limit int) ([]Article, error)
	GetLatestQuote(ctx context.Context, symbol string) (Quote, error)
	// GetTopMovers returns the day's biggest percentage movers for the
	// dynamic screener. Optional: implementations may return an empty list.
	GetTopMovers(ctx context.Context, n int) ([]string, error)
}
