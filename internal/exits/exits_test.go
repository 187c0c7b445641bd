package exits

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alphabot/internal/broker"
	"alphabot/internal/config"
	"alphabot/internal/market"
	"alphabot/internal/store"
)

type fakeBroker struct {
	positions    []broker.Position
	positionsErr error

	marketOrders []placedOrder
	rejectOrders bool
	closed       []string
	closeErr     error
}

type placedOrder struct {
	symbol string
	qty    float64
	side   string
}

func (f *fakeBroker) GetBars(context.Context, string, string, int) (market.Series, error) {
	return nil, nil
}

func (f *fakeBroker) GetAccount(context.Context) (broker.Account, error) {
	return broker.Account{}, nil
}

func (f *fakeBroker) GetPositions(context.Context) ([]broker.Position, error) {
	return f.positions, f.positionsErr
}

func (f *fakeBroker) GetPosition(context.Context, string) (*broker.Position, error) {
	return nil, nil
}

func (f *fakeBroker) PlaceBracketOrder(context.Context, broker.BracketOrder) (*broker.OrderAck, error) {
	return nil, nil
}

func (f *fakeBroker) PlaceMarketOrder(_ context.Context, symbol string, qty float64, side string) (*broker.OrderAck, error) {
	if f.rejectOrders {
		return nil, nil
	}
	f.marketOrders = append(f.marketOrders, placedOrder{symbol: symbol, qty: qty, side: side})
	return &broker.OrderAck{ID: "ord-1", Symbol: symbol, Qty: qty, Side: side}, nil
}

func (f *fakeBroker) ClosePosition(_ context.Context, symbol string) error {
	if f.closeErr != nil {
		return f.closeErr
	}
	f.closed = append(f.closed, symbol)
	return nil
}

func (f *fakeBroker) IsMarketOpen(context.Context) (bool, error) { return true, nil }

func (f *fakeBroker) GetNews(context.Context, []string, int) ([]broker.Article, error) {
	return nil, nil
}

func (f *fakeBroker) GetLatestQuote(context.Context, string) (broker.Quote, error) {
	return broker.Quote{}, nil
}

func (f *fakeBroker) GetTopMovers(context.Context, int) ([]string, error) { return nil, nil }

func exitConfig() config.PartialExitConfig {
	return config.PartialExitConfig{
		Enabled:        true,
		ATRMultiplier:  3.0,
		TrailATRMult:   2.0,
		TimeExitDays:   10,
		VolExitEnabled: true,
	}
}

func newTestManager(t *testing.T, fb *fakeBroker) (*Manager, *store.Memory) {
	t.Helper()
	st := store.NewMemory()
	m, err := NewManager(fb, st, exitConfig())
	require.NoError(t, err)
	return m, st
}

func held(symbol string, qty, price float64) broker.Position {
	return broker.Position{Symbol: symbol, Qty: qty, EntryPrice: 100, CurrentPrice: price}
}

func TestRegister_SetsPartialTarget(t *testing.T) {
	m, st := newTestManager(t, &fakeBroker{})
	require.NoError(t, m.Register("AAPL", 100, 10, 2))

	recs, err := st.LoadExits()
	require.NoError(t, err)
	rec := recs["AAPL"]
	assert.InDelta(t, 106.0, rec.PartialTarget, 1e-9)
	assert.Equal(t, 10.0, rec.QtyRemaining)
	assert.False(t, rec.PartialFilled)
	assert.True(t, m.Tracked("AAPL"))
}

func TestMonitor_PartialThenTrailThenClose(t *testing.T) {
	fb := &fakeBroker{}
	m, st := newTestManager(t, fb)
	require.NoError(t, m.Register("AAPL", 100, 10, 2))
	ctx := context.Background()

	// Price reaches entry + 3*ATR: half comes off, trail arms 2*ATR below.
	fb.positions = []broker.Position{held("AAPL", 10, 106)}
	events := m.Monitor(ctx, nil)
	require.Len(t, events, 1)
	assert.Equal(t, EventPartialFill, events[0].Kind)
	assert.Equal(t, 5.0, events[0].Qty)
	require.Len(t, fb.marketOrders, 1)
	assert.Equal(t, "sell", fb.marketOrders[0].side)

	recs, _ := st.LoadExits()
	rec := recs["AAPL"]
	assert.True(t, rec.PartialFilled)
	assert.Equal(t, 5.0, rec.QtyRemaining)
	assert.InDelta(t, 102.0, rec.TrailingStop, 1e-9)

	// Higher price ratchets the trail up.
	fb.positions = []broker.Position{held("AAPL", 5, 110)}
	events = m.Monitor(ctx, nil)
	assert.Empty(t, events)
	recs, _ = st.LoadExits()
	assert.InDelta(t, 106.0, recs["AAPL"].TrailingStop, 1e-9)

	// Falling through the trail closes the remainder.
	fb.positions = []broker.Position{held("AAPL", 5, 105)}
	events = m.Monitor(ctx, nil)
	require.Len(t, events, 1)
	assert.Equal(t, EventTrailClose, events[0].Kind)
	assert.Equal(t, []string{"AAPL"}, fb.closed)
	assert.False(t, m.Tracked("AAPL"))

	recs, _ = st.LoadExits()
	assert.Empty(t, recs)
}

func TestMonitor_TrailNeverRatchetsDown(t *testing.T) {
	fb := &fakeBroker{}
	m, st := newTestManager(t, fb)
	require.NoError(t, m.Register("AAPL", 100, 10, 2))
	ctx := context.Background()

	fb.positions = []broker.Position{held("AAPL", 10, 106)}
	m.Monitor(ctx, nil)
	fb.positions = []broker.Position{held("AAPL", 5, 110)}
	m.Monitor(ctx, nil)

	// Mild pullback: trail stays at 106 and position stays open.
	fb.positions = []broker.Position{held("AAPL", 5, 107)}
	events := m.Monitor(ctx, nil)
	assert.Empty(t, events)
	recs, _ := st.LoadExits()
	assert.InDelta(t, 106.0, recs["AAPL"].TrailingStop, 1e-9)
}

func TestMonitor_DeadTradeExit(t *testing.T) {
	fb := &fakeBroker{}
	m, _ := newTestManager(t, fb)
	require.NoError(t, m.Register("AAPL", 100, 10, 2))

	now := time.Now()
	m.nowFn = func() time.Time { return now.Add(11 * 24 * time.Hour) }

	fb.positions = []broker.Position{held("AAPL", 10, 101)}
	events := m.Monitor(context.Background(), nil)
	require.Len(t, events, 1)
	assert.Equal(t, EventDeadTrade, events[0].Kind)
	assert.Equal(t, []string{"AAPL"}, fb.closed)
}

func TestMonitor_DeadTradeSparesWinners(t *testing.T) {
	fb := &fakeBroker{}
	m, _ := newTestManager(t, fb)
	require.NoError(t, m.Register("AAPL", 100, 10, 0))

	now := time.Now()
	m.nowFn = func() time.Time { return now.Add(11 * 24 * time.Hour) }

	// +5% is not a dead trade even after the time window.
	fb.positions = []broker.Position{held("AAPL", 10, 105)}
	events := m.Monitor(context.Background(), nil)
	assert.Empty(t, events)
	assert.True(t, m.Tracked("AAPL"))
}

func TestMonitor_VolatilitySpikeExit(t *testing.T) {
	fb := &fakeBroker{}
	m, _ := newTestManager(t, fb)
	require.NoError(t, m.Register("AAPL", 100, 10, 2))

	fb.positions = []broker.Position{held("AAPL", 10, 103)}
	atrOf := func(string) float64 { return 4.5 } // more than doubled
	events := m.Monitor(context.Background(), atrOf)
	require.Len(t, events, 1)
	assert.Equal(t, EventVolSpike, events[0].Kind)
}

func TestMonitor_DropsOrphanedRecords(t *testing.T) {
	fb := &fakeBroker{}
	m, st := newTestManager(t, fb)
	require.NoError(t, m.Register("AAPL", 100, 10, 2))

	// Broker shows no position: the record is stale.
	events := m.Monitor(context.Background(), nil)
	require.Len(t, events, 1)
	assert.Equal(t, EventOrphanDrop, events[0].Kind)
	assert.False(t, m.Tracked("AAPL"))
	recs, _ := st.LoadExits()
	assert.Empty(t, recs)
}

func TestMonitor_SkipsCycleOnPositionsError(t *testing.T) {
	fb := &fakeBroker{positionsErr: assert.AnError}
	m, _ := newTestManager(t, fb)
	require.NoError(t, m.Register("AAPL", 100, 10, 2))

	events := m.Monitor(context.Background(), nil)
	assert.Empty(t, events)
	assert.True(t, m.Tracked("AAPL"))
}

func TestManager_ResumesFromStore(t *testing.T) {
	st := store.NewMemory()
	require.NoError(t, st.SaveExit(store.ExitRecord{
		Symbol:        "MSFT",
		EntryPrice:    300,
		QtyOriginal:   4,
		QtyRemaining:  2,
		ATRAtEntry:    5,
		PartialTarget: 315,
		PartialFilled: true,
		TrailingStop:  310,
		RegisteredAt:  time.Now().Add(-48 * time.Hour),
	}))

	fb := &fakeBroker{}
	m, err := NewManager(fb, st, exitConfig())
	require.NoError(t, err)
	assert.True(t, m.Tracked("MSFT"))

	// The restored trail still closes the position.
	fb.positions = []broker.Position{{Symbol: "MSFT", Qty: 2, EntryPrice: 300, CurrentPrice: 309}}
	events := m.Monitor(context.Background(), nil)
	require.Len(t, events, 1)
	assert.Equal(t, EventTrailClose, events[0].Kind)
}
