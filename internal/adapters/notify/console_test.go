package notify_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/signalbot/internal/adapters/notify"
	"github.com/alejandrodnm/signalbot/internal/domain"
)

func makeStatus(id string, snap *domain.BotSnapshot) domain.BotStatus {
	return domain.BotStatus{
		Bot: domain.Bot{
			ID: id, Asset: "ETH-USD", CooldownMinutes: 30, DailyLossCap: 100,
		},
		Snapshot: snap,
		Counters: domain.TradingCounters{BotID: id, DailyLoss: decimal.Zero},
	}
}

func TestConsole_NotifyStatus_Table(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, true)

	now := time.Now()
	statuses := []domain.BotStatus{
		makeStatus("eth-trend", &domain.BotSnapshot{
			BotID: "eth-trend", Score: 0.234, Action: domain.ActionBuy, Temperature: domain.Warm,
			Confirmation: domain.ConfirmationState{Action: domain.ActionBuy, Since: now.Add(-10 * time.Minute), Confirmed: true},
			EvaluatedAt:  now,
		}),
		makeStatus("eth-idle", nil),
	}

	require.NoError(t, n.NotifyStatus(context.Background(), false, statuses))

	out := buf.String()
	assert.Contains(t, out, "eth-trend")
	assert.Contains(t, out, "+0.234")
	assert.Contains(t, out, "WARM")
	assert.Contains(t, out, "OK BUY")
	assert.Contains(t, out, "eth-idle")
	assert.NotContains(t, out, "EMERGENCY STOP")
}

func TestConsole_NotifyStatus_CompactShowsHaltAndNoSignal(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, false)

	statuses := []domain.BotStatus{
		makeStatus("b1", &domain.BotSnapshot{BotID: "b1", Action: domain.ActionHold, NoSignal: true, EvaluatedAt: time.Now()}),
	}
	require.NoError(t, n.NotifyStatus(context.Background(), true, statuses))

	out := buf.String()
	assert.Contains(t, out, "EMERGENCY STOP ENGAGED")
	assert.Contains(t, out, "no signal")
}

func TestConsole_NotifyStatus_Empty(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, true)

	require.NoError(t, n.NotifyStatus(context.Background(), false, nil))
	assert.Contains(t, buf.String(), "no bots configured")
}

func TestConsole_NotifyAttempts(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, true)

	attempts := []domain.TradeAttempt{
		{ID: "1", BotID: "b1", Action: domain.ActionSell, Size: 25, Outcome: domain.OutcomeRejected,
			Reason: "daily_loss_cap", RealizedPnL: decimal.Zero, CreatedAt: time.Now()},
		{ID: "2", BotID: "b1", Action: domain.ActionBuy, Size: 25, Outcome: domain.OutcomeExecutionFailed,
			Reason: "timeout", Reconciliation: true, RealizedPnL: decimal.Zero, CreatedAt: time.Now()},
	}
	require.NoError(t, n.NotifyAttempts(context.Background(), "b1", attempts))

	out := buf.String()
	assert.Contains(t, out, "daily_loss_cap")
	assert.Contains(t, out, "execution_failed")
	assert.Contains(t, out, "YES")
}
