package ports

import (
	"time"

	"github.com/alejandrodnm/signalbot/internal/domain"
)

// Metrics registra contadores e histogramas del evaluador.
// Todas las implementaciones deben ser seguras para uso concurrente.
type Metrics interface {
	ObserveEvaluation(botID string, action domain.Action, noSignal bool, d time.Duration)
	SetScore(botID string, score float64)
	IncRejection(botID string, reason domain.RejectReason)
	IncExecution(botID string, outcome domain.AttemptOutcome)
	IncCache(result string)
}

// NopMetrics descarta todo.
type NopMetrics struct{}

func (NopMetrics) ObserveEvaluation(string, domain.Action, bool, time.Duration) {}
func (NopMetrics) SetScore(string, float64) {}
func (NopMetrics) IncRejection(string, domain.RejectReason) {}
func (NopMetrics) IncExecution(string, domain.AttemptOutcome) {}
func (NopMetrics) IncCache(string) {}
