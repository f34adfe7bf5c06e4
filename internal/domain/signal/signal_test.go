package signal_test

import (
	"testing"
	"time"

	"github.com/alejandrodnm/signalbot/internal/domain"
	"github.com/alejandrodnm/signalbot/internal/domain/indicator"
	"github.com/alejandrodnm/signalbot/internal/domain/signal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seriesOf(closes []float64) domain.PriceSeries {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]domain.Candle, len(closes))
	for i, c := range closes {
		candles[i] = domain.Candle{OpenTime: start.Add(time.Duration(i) * time.Hour), Open: c, High: c, Low: c, Close: c}
	}
	return domain.PriceSeries{Asset: "ETH-USD", Granularity: domain.Granularity1h, Candles: candles}
}

func downtrend(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 200 - float64(i)
	}
	return out
}

func makeBot(signals map[string]domain.IndicatorConfig) domain.Bot {
	return domain.Bot{
		ID: "bot-1", Asset: "ETH-USD", Granularity: domain.Granularity1h, Lookback: 100,
		Signals:      signals,
		BuyThreshold: domain.DefaultBuyThreshold, SellThreshold: domain.DefaultSellThreshold,
	}
}

func TestCombine_UnavailableIndicatorDilutesScore(t *testing.T) {
	// rsi (lookback 15) and sma crossover (lookback 20) are available on 25
	// candles, macd (lookback 35) is not.
	bot := makeBot(map[string]domain.IndicatorConfig{
		indicator.TypeRSI:          {Enabled: true, Weight: 0.4},
		indicator.TypeSMACrossover: {Enabled: true, Weight: 0.25, Params: map[string]float64{"fast": 5, "slow": 20}},
		indicator.TypeMACD:         {Enabled: true, Weight: 0.35},
	})
	series := seriesOf(downtrend(25))

	agg, err := signal.Combine(bot, series)
	require.NoError(t, err)

	assert.Equal(t, []string{indicator.TypeMACD}, agg.Unavailable)
	assert.InDelta(t, 0.65, agg.UsedWeight, 1e-12)

	want := 0.0
	for _, c := range agg.Contributions {
		want += c.Weight * c.Result.Score
	}
	assert.InDelta(t, want, agg.Score, 1e-12, "not renormalized to 1.0")
	// a steady decline reads oversold on RSI (+1) and bearish on the
	// crossover (close to -1)
	assert.InDelta(t, 0.4-0.25, agg.Score, 1e-3)
	assert.Equal(t, domain.ActionBuy, agg.Action)
}

func TestCombine_ThreeIndicatorScenarioUsesRemainingWeightOnly(t *testing.T) {
	bot := makeBot(map[string]domain.IndicatorConfig{
		indicator.TypeRSI:          {Enabled: true, Weight: 0.4},
		indicator.TypeMACD:         {Enabled: true, Weight: 0.35},
		indicator.TypeSMACrossover: {Enabled: true, Weight: 0.25, Params: map[string]float64{"fast": 3, "slow": 10}},
	})
	agg, err := signal.Combine(bot, seriesOf(downtrend(30)))
	require.NoError(t, err)
	require.Equal(t, []string{indicator.TypeMACD}, agg.Unavailable)
	assert.InDelta(t, 0.65, agg.UsedWeight, 1e-12)

	bot.Signals[indicator.TypeRSI] = domain.IndicatorConfig{Enabled: true, Weight: 0.4, Params: map[string]float64{"period": 40}}
	agg, err = signal.Combine(bot, seriesOf(downtrend(30)))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{indicator.TypeMACD, indicator.TypeRSI}, agg.Unavailable)
	assert.InDelta(t, 0.25, agg.UsedWeight, 1e-12)
}

func TestCombine_RenormalizePolicy(t *testing.T) {
	bot := makeBot(map[string]domain.IndicatorConfig{
		indicator.TypeRSI:  {Enabled: true, Weight: 0.5},
		indicator.TypeMACD: {Enabled: true, Weight: 0.5},
	})
	bot.Renormalize = true
	agg, err := signal.Combine(bot, seriesOf(downtrend(20)))
	require.NoError(t, err)
	// only rsi is available; 0.5*1 renormalized by 0.5
	assert.InDelta(t, 1.0, agg.Score, 1e-12)
}

func TestCombine_NoUsableIndicator(t *testing.T) {
	bot := makeBot(map[string]domain.IndicatorConfig{
		indicator.TypeMACD: {Enabled: true, Weight: 1},
	})
	agg, err := signal.Combine(bot, seriesOf(downtrend(10)))
	assert.ErrorIs(t, err, domain.ErrInsufficientData)
	assert.Equal(t, domain.ActionHold, agg.Action)
}

func TestCombine_DisabledIndicatorsIgnored(t *testing.T) {
	bot := makeBot(map[string]domain.IndicatorConfig{
		indicator.TypeRSI:  {Enabled: true, Weight: 0.3},
		indicator.TypeMACD: {Enabled: false, Weight: 0.7},
	})
	agg, err := signal.Combine(bot, seriesOf(downtrend(60)))
	require.NoError(t, err)
	require.Len(t, agg.Contributions, 1)
	assert.Empty(t, agg.Unavailable)
	assert.InDelta(t, 0.3, agg.Score, 1e-12)
}

func TestCombine_Deterministic(t *testing.T) {
	bot := makeBot(map[string]domain.IndicatorConfig{
		indicator.TypeRSI:          {Enabled: true, Weight: 0.2},
		indicator.TypeMACD:         {Enabled: true, Weight: 0.3},
		indicator.TypeEMACrossover: {Enabled: true, Weight: 0.25},
		indicator.TypeSMACrossover: {Enabled: true, Weight: 0.25},
	})
	closes := make([]float64, 80)
	for i := range closes {
		closes[i] = 100 + float64(i%7) - float64(i%3)*0.7
	}
	first, err := signal.Combine(bot, seriesOf(closes))
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := signal.Combine(bot, seriesOf(closes))
		require.NoError(t, err)
		assert.Equal(t, first.Score, again.Score)
		assert.Equal(t, first.Action, again.Action)
	}
}

func TestDecide_AsymmetricThresholds(t *testing.T) {
	assert.Equal(t, domain.ActionBuy, signal.Decide(0.05, 0.05, -0.2))
	assert.Equal(t, domain.ActionHold, signal.Decide(0.049, 0.05, -0.2))
	assert.Equal(t, domain.ActionHold, signal.Decide(-0.1, 0.05, -0.2))
	assert.Equal(t, domain.ActionSell, signal.Decide(-0.2, 0.05, -0.2))
}

func TestClassify_Bands(t *testing.T) {
	p := signal.Conservative
	cases := []struct {
		score float64
		want  domain.Temperature
	}{
		{0, domain.Frozen},
		{0.049, domain.Frozen},
		{-0.05, domain.Cool},
		{0.149, domain.Cool},
		{0.15, domain.Warm},
		{-0.29, domain.Warm},
		{0.30, domain.Hot},
		{-1, domain.Hot},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, signal.Classify(tc.score, p, 0.05, -0.05).Temperature, "score=%v", tc.score)
	}
}

func TestClassify_ProfilesAreIndependentPerCall(t *testing.T) {
	profiles := signal.DefaultProfiles()
	sensitive, err := profiles.Lookup("sensitive")
	require.NoError(t, err)
	conservative, err := profiles.Lookup("conservative")
	require.NoError(t, err)

	assert.Equal(t, domain.Warm, signal.Classify(0.08, sensitive, 0.05, -0.05).Temperature)
	assert.Equal(t, domain.Cool, signal.Classify(0.08, conservative, 0.05, -0.05).Temperature)

	_, err = profiles.Lookup("aggressive")
	assert.True(t, domain.IsConfigurationError(err))
}

func TestClassify_DistanceToNearerThreshold(t *testing.T) {
	r := signal.Classify(0.03, signal.Sensitive, 0.05, -0.10)
	assert.Equal(t, domain.ActionBuy, r.Approaching)
	assert.InDelta(t, 0.02, r.Distance, 1e-12)

	r = signal.Classify(-0.08, signal.Sensitive, 0.05, -0.10)
	assert.Equal(t, domain.ActionSell, r.Approaching)
	assert.InDelta(t, 0.02, r.Distance, 1e-12)

	r = signal.Classify(0.2, signal.Sensitive, 0.05, -0.10)
	assert.Equal(t, domain.ActionBuy, r.Approaching)
	assert.Less(t, r.Distance, 0.0, "threshold already crossed")
}

func TestProfile_Validate(t *testing.T) {
	assert.NoError(t, signal.Sensitive.Validate())
	assert.NoError(t, signal.Conservative.Validate())
	assert.Error(t, signal.Profile{Name: "x", FrozenMax: 0.2, CoolMax: 0.1, WarmMax: 0.3}.Validate())
	assert.Error(t, signal.Profile{Name: "x", FrozenMax: 0.1, CoolMax: 0.2, WarmMax: 1.2}.Validate())
}
