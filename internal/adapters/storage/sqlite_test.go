package storage_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/signalbot/internal/adapters/exchange"
	"github.com/alejandrodnm/signalbot/internal/adapters/storage"
	"github.com/alejandrodnm/signalbot/internal/domain"
	"github.com/alejandrodnm/signalbot/internal/domain/confirmation"
	"github.com/alejandrodnm/signalbot/internal/domain/signal"
)

func newDB(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func makeBot(id string) domain.Bot {
	return domain.Bot{
		ID: id, Asset: "BTC-USD", Granularity: domain.Granularity5m, Lookback: 120,
		Signals: map[string]domain.IndicatorConfig{
			"rsi":  {Type: "rsi", Enabled: true, Weight: 0.4, Params: map[string]float64{"period": 10}},
			"macd": {Type: "macd", Enabled: false, Weight: 0.35},
		},
		BuyThreshold: 0.08, SellThreshold: -0.12, Renormalize: true,
		ConfirmationMinutes: 5, CooldownMinutes: 30,
		PositionSize: 25, MinPositionSize: 10, MaxPositionSize: 200,
		MinTemperature: domain.Warm, DailyLossCap: 100, Profile: "sensitive",
	}
}

func TestBots_RoundTrip(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()

	want := makeBot("btc-fast")
	require.NoError(t, db.SaveBot(ctx, want))

	got, err := db.GetBot(ctx, "btc-fast")
	require.NoError(t, err)
	assert.False(t, got.CreatedAt.IsZero())
	assert.False(t, got.UpdatedAt.IsZero())

	got.CreatedAt, got.UpdatedAt = time.Time{}, time.Time{}
	assert.Equal(t, want, got)
}

// fixtureSeries serves the candle fixture through the exchange client so the
// series is mapped exactly as in production.
func fixtureSeries(t *testing.T, lookback int) domain.PriceSeries {
	t.Helper()
	data, err := os.ReadFile("../../../testdata/fixtures/candles_btc_usd_1h.json")
	require.NoError(t, err)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	}))
	t.Cleanup(srv.Close)

	series, err := exchange.NewClient(srv.URL, "").PriceSeries(context.Background(), "BTC-USD", domain.Granularity1h, lookback)
	require.NoError(t, err)
	return series
}

func TestBots_ReloadedBotScoresIdentically(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()

	want := domain.Bot{
		ID: "btc-mix", Asset: "BTC-USD", Granularity: domain.Granularity1h, Lookback: 40,
		Signals: map[string]domain.IndicatorConfig{
			"rsi":           {Type: "rsi", Enabled: true, Weight: 0.4, Params: map[string]float64{"period": 10, "neutral_band": 2.5}},
			"macd":          {Type: "macd", Enabled: true, Weight: 0.35, Params: map[string]float64{"scale": 0.0075, "blend": 0.3}},
			"sma_crossover": {Type: "sma_crossover", Enabled: true, Weight: 0.25, Params: map[string]float64{"fast": 5, "slow": 20}},
			"ema_crossover": {Type: "ema_crossover", Enabled: false, Weight: 0.5},
		},
		BuyThreshold: 0.07, SellThreshold: -0.11, Renormalize: true,
		ConfirmationMinutes: 5, CooldownMinutes: 30,
		PositionSize: 25, MinPositionSize: 10, MaxPositionSize: 200,
		MinTemperature: domain.Warm, DailyLossCap: 100, Profile: "sensitive",
	}
	require.NoError(t, db.SaveBot(ctx, want))
	got, err := db.GetBot(ctx, want.ID)
	require.NoError(t, err)

	series := fixtureSeries(t, want.Lookback)
	before, err := signal.Combine(want, series)
	require.NoError(t, err)
	after, err := signal.Combine(got, series)
	require.NoError(t, err)

	assert.Len(t, before.Contributions, 3)
	assert.Equal(t, before.Score, after.Score)
	assert.Equal(t, before.Action, after.Action)
	assert.Equal(t, before.Contributions, after.Contributions)
}

func TestBots_UpdateKeepsCreatedAt(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()

	b := makeBot("b1")
	require.NoError(t, db.SaveBot(ctx, b))
	first, err := db.GetBot(ctx, "b1")
	require.NoError(t, err)

	b.BuyThreshold = 0.2
	require.NoError(t, db.SaveBot(ctx, b))
	second, err := db.GetBot(ctx, "b1")
	require.NoError(t, err)

	assert.Equal(t, 0.2, second.BuyThreshold)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
}

func TestBots_ListAndDelete(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()

	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, db.SaveBot(ctx, makeBot(id)))
	}
	bots, err := db.ListBots(ctx)
	require.NoError(t, err)
	require.Len(t, bots, 3)
	assert.Equal(t, "a", bots[0].ID)
	assert.Equal(t, "c", bots[2].ID)

	require.NoError(t, db.SaveConfirmation(ctx, domain.ConfirmationState{BotID: "a", Action: domain.ActionBuy, Since: time.Now()}))
	require.NoError(t, db.DeleteBot(ctx, "a"))

	_, err = db.GetBot(ctx, "a")
	assert.ErrorIs(t, err, domain.ErrBotNotFound)
	_, ok, err := db.LoadConfirmation(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSnapshots_Upsert(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()

	_, ok, err := db.LatestSnapshot(ctx, "b1")
	require.NoError(t, err)
	assert.False(t, ok)

	at := time.Date(2026, 2, 3, 4, 5, 6, 7, time.UTC)
	snap := domain.BotSnapshot{
		BotID: "b1", Score: 0.31, Action: domain.ActionBuy, Temperature: domain.Hot,
		Confirmation: domain.ConfirmationState{BotID: "b1", Action: domain.ActionBuy, Since: at, Required: time.Minute},
		EvaluatedAt:  at,
	}
	require.NoError(t, db.SaveSnapshot(ctx, snap))
	snap.Score, snap.Action, snap.NoSignal = 0, domain.ActionHold, true
	require.NoError(t, db.SaveSnapshot(ctx, snap))

	got, ok, err := db.LatestSnapshot(ctx, "b1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, snap, got)
}

func TestConfirmations_RoundTrip(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()

	st := domain.ConfirmationState{
		BotID: "b1", Action: domain.ActionSell,
		Since:    time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC),
		Required: 5 * time.Minute, Confirmed: true,
		ConfirmedAt: time.Date(2026, 1, 1, 10, 5, 0, 0, time.UTC),
	}
	require.NoError(t, db.SaveConfirmation(ctx, st))
	got, ok, err := db.LoadConfirmation(ctx, "b1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, st, got)
}

func TestConfirmations_CorruptedRow(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()

	require.NoError(t, db.Exec(ctx,
		`INSERT INTO confirmations (bot_id, action, since, required_ns) VALUES ('b1', 'MAYBE', 'yesterday', 0)`))
	_, _, err := db.LoadConfirmation(ctx, "b1")
	assert.ErrorIs(t, err, domain.ErrStateCorrupted)
}

func TestConfirmations_TrackerSurvivesRestart(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()
	t0 := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	_, err := confirmation.NewTracker(db).Observe(ctx, "b1", domain.ActionBuy, 5*time.Minute, t0)
	require.NoError(t, err)

	st, err := confirmation.NewTracker(db).Observe(ctx, "b1", domain.ActionBuy, 5*time.Minute, t0.Add(5*time.Minute))
	require.NoError(t, err)
	assert.True(t, st.Confirmed)
}

func TestConfirmations_TrackerResetsCorruptedRow(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()
	require.NoError(t, db.Exec(ctx,
		`INSERT INTO confirmations (bot_id, action, since, required_ns, confirmed) VALUES ('b1', 'BUY', '', 0, 1)`))

	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	st, err := confirmation.NewTracker(db).Observe(ctx, "b1", domain.ActionBuy, 5*time.Minute, now)
	require.NoError(t, err)
	assert.False(t, st.Confirmed)
	assert.Equal(t, now, st.Since)
}

func TestCounters_RoundTrip(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()

	c := domain.TradingCounters{
		BotID:       "b1",
		LastTradeAt: time.Date(2026, 1, 1, 9, 30, 0, 0, time.UTC),
		Day:         time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		DailyLoss:   decimal.RequireFromString("105.25"),
	}
	require.NoError(t, db.SaveCounters(ctx, c))
	got, ok, err := db.LoadCounters(ctx, "b1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, c.LastTradeAt, got.LastTradeAt)
	assert.Equal(t, c.Day, got.Day)
	assert.True(t, c.DailyLoss.Equal(got.DailyLoss))
}

func TestAttempts_UpsertAndOrder(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()
	base := time.Now().UTC()

	rejected := domain.TradeAttempt{
		ID: "a1", BotID: "b1", Asset: "BTC-USD", Action: domain.ActionBuy, Size: 25,
		Outcome: domain.OutcomeRejected, Reason: string(domain.ReasonCooldownActive),
		RealizedPnL: decimal.Zero, CreatedAt: base,
	}
	approved := domain.TradeAttempt{
		ID: "a2", BotID: "b1", Asset: "BTC-USD", Action: domain.ActionSell, Size: 25,
		Outcome: domain.OutcomeApproved, RealizedPnL: decimal.Zero, CreatedAt: base.Add(time.Second),
	}
	require.NoError(t, db.SaveAttempt(ctx, rejected))
	require.NoError(t, db.SaveAttempt(ctx, approved))

	approved.Outcome = domain.OutcomeExecuted
	approved.OrderID = "ord-1"
	approved.RealizedPnL = decimal.RequireFromString("-3.5")
	require.NoError(t, db.SaveAttempt(ctx, approved))

	got, err := db.ListAttempts(ctx, "b1", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a2", got[0].ID)
	assert.Equal(t, domain.OutcomeExecuted, got[0].Outcome)
	assert.Equal(t, "ord-1", got[0].OrderID)
	assert.True(t, got[0].RealizedPnL.Equal(decimal.RequireFromString("-3.5")))
	assert.Equal(t, "cooldown_active", got[1].Reason)

	limited, err := db.ListAttempts(ctx, "b1", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestFlags(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()

	v, err := db.GetFlag(ctx, "emergency_stop")
	require.NoError(t, err)
	assert.False(t, v)

	require.NoError(t, db.SetFlag(ctx, "emergency_stop", true))
	v, err = db.GetFlag(ctx, "emergency_stop")
	require.NoError(t, err)
	assert.True(t, v)
}

func TestClosedDBReturnsErrors(t *testing.T) {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = db.GetFlag(context.Background(), "x")
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrBotNotFound))
}
