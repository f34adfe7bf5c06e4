package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/signalbot/internal/domain"
)

// Console implementa ports.Notifier.
type Console struct {
	out   io.Writer
	table bool
	now   func() time.Time
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole(table bool) *Console {
	return &Console{out: os.Stdout, table: table, now: time.Now}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer, table bool) *Console {
	return &Console{out: w, table: table, now: time.Now}
}

// NotifyStatus imprime el estado de los bots en el modo configurado.
func (c *Console) NotifyStatus(_ context.Context, halted bool, statuses []domain.BotStatus) error {
	now := c.now()
	if halted {
		fmt.Fprintf(c.out, "[%s] !! EMERGENCY STOP ENGAGED: no trade will be authorized\n", now.Format("15:04:05"))
	}
	if len(statuses) == 0 {
		fmt.Fprintf(c.out, "[%s] no bots configured\n", now.Format("15:04:05"))
		return nil
	}

	if c.table {
		c.printTable(statuses, now)
	} else {
		c.printCompact(statuses, now)
	}
	return nil
}

// printCompact imprime una línea por bot.
func (c *Console) printCompact(statuses []domain.BotStatus, now time.Time) {
	for _, st := range statuses {
		var sb strings.Builder
		fmt.Fprintf(&sb, "[%s] %-12s %-9s", now.Format("15:04:05"), truncate(st.Bot.ID, 12), st.Bot.Asset)
		if st.Snapshot == nil {
			sb.WriteString(" never evaluated")
			fmt.Fprintln(c.out, sb.String())
			continue
		}
		s := st.Snapshot
		if s.NoSignal {
			fmt.Fprintf(&sb, " %s no signal", domain.Frozen.Icon())
		} else {
			fmt.Fprintf(&sb, " %s %+.3f %-4s", s.Temperature.Icon(), s.Score, s.Action)
		}
		fmt.Fprintf(&sb, " %s cd:%s loss:$%s",
			confirmationLabel(s.Confirmation, now), cooldownLabel(st, now), st.Counters.LossOn(now).StringFixed(2))
		fmt.Fprintln(c.out, sb.String())
	}
}

// printTable imprime la tabla completa.
func (c *Console) printTable(statuses []domain.BotStatus, now time.Time) {
	fmt.Fprintf(c.out, "\n[%s] %d bots\n", now.Format("15:04:05"), len(statuses))

	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Bot", "Asset", "Score", "Action", "Temp", "Confirmation", "Cooldown", "Loss today", "Evaluated")

	for i, st := range statuses {
		row := []string{fmt.Sprintf("%d", i+1), st.Bot.ID, st.Bot.Asset}
		if s := st.Snapshot; s != nil {
			score := fmt.Sprintf("%+.3f", s.Score)
			action := s.Action.String()
			if s.NoSignal {
				score, action = "-", "HOLD (no signal)"
			}
			row = append(row,
				score,
				action,
				s.Temperature.String(),
				confirmationLabel(s.Confirmation, now),
			)
		} else {
			row = append(row, "-", "-", "-", "-")
		}
		row = append(row,
			cooldownLabel(st, now),
			fmt.Sprintf("$%s / $%.2f", st.Counters.LossOn(now).StringFixed(2), st.Bot.DailyLossCap),
			evaluatedLabel(st.Snapshot, now),
		)
		table.Append(row)
	}
	table.Render()

	fmt.Fprintln(c.out, "  Score: +1 buy … -1 sell | Temp: FROZEN < COOL < WARM < HOT")
	fmt.Fprintln(c.out, "  Confirmation: OK = action held for the full window")
}

// NotifyAttempts imprime el ledger de un bot.
func (c *Console) NotifyAttempts(_ context.Context, botID string, attempts []domain.TradeAttempt) error {
	if len(attempts) == 0 {
		fmt.Fprintf(c.out, "no trade attempts for %s\n", botID)
		return nil
	}
	table := tablewriter.NewWriter(c.out)
	table.Header("When", "Action", "Size", "Outcome", "Reason", "Order", "PnL", "Reconcile")
	for _, a := range attempts {
		recon := ""
		if a.Reconciliation {
			recon = "YES"
		}
		table.Append([]string{
			a.CreatedAt.Local().Format("01-02 15:04:05"),
			a.Action.String(),
			fmt.Sprintf("$%.2f", a.Size),
			string(a.Outcome),
			a.Reason,
			truncate(a.OrderID, 12),
			a.RealizedPnL.StringFixed(2),
			recon,
		})
	}
	table.Render()
	return nil
}

// --- helpers ---

func confirmationLabel(cs domain.ConfirmationState, now time.Time) string {
	switch {
	case cs.Since.IsZero():
		return "-"
	case cs.Confirmed:
		return fmt.Sprintf("OK %s", cs.Action)
	default:
		return fmt.Sprintf("%s %s/%s", cs.Action, shortDuration(cs.Elapsed(now)), shortDuration(cs.Required))
	}
}

func cooldownLabel(st domain.BotStatus, now time.Time) string {
	last := st.Counters.LastTradeAt
	if last.IsZero() {
		return "ready"
	}
	left := st.Bot.Cooldown() - now.Sub(last)
	if left <= 0 {
		return "ready"
	}
	return shortDuration(left)
}

func evaluatedLabel(s *domain.BotSnapshot, now time.Time) string {
	if s == nil {
		return "never"
	}
	return shortDuration(now.Sub(s.EvaluatedAt)) + " ago"
}

func shortDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%.1fm", d.Minutes())
	default:
		return fmt.Sprintf("%.1fh", d.Hours())
	}
}

// truncate recorta s a max runas, añadiendo "…" si hace falta.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
