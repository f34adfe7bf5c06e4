// Package metrics records evaluator activity with Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/alejandrodnm/signalbot/internal/domain"
)

// Recorder implements ports.Metrics using Prometheus.
type Recorder struct {
	evaluations *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	score       *prometheus.GaugeVec
	rejections  *prometheus.CounterVec
	executions  *prometheus.CounterVec
	cache       *prometheus.CounterVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		evaluations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalbot_evaluations_total",
				Help: "Evaluation cycles by bot, resulting action and signal availability",
			},
			[]string{"bot", "action", "no_signal"},
		),
		duration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "signalbot_evaluation_duration_seconds",
				Help:    "Duration of evaluation cycles in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"bot"},
		),
		score: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "signalbot_combined_score",
				Help: "Last combined score per bot",
			},
			[]string{"bot"},
		),
		rejections: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalbot_safety_rejections_total",
				Help: "Safety gate rejections by reason",
			},
			[]string{"bot", "reason"},
		),
		executions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalbot_executions_total",
				Help: "Execution attempts by outcome",
			},
			[]string{"bot", "outcome"},
		),
		cache: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalbot_market_data_cache_total",
				Help: "Market data cache lookups by result",
			},
			[]string{"result"},
		),
	}
}

func (r *Recorder) ObserveEvaluation(botID string, action domain.Action, noSignal bool, d time.Duration) {
	ns := "false"
	if noSignal {
		ns = "true"
	}
	r.evaluations.WithLabelValues(botID, action.String(), ns).Inc()
	r.duration.WithLabelValues(botID).Observe(d.Seconds())
}

func (r *Recorder) SetScore(botID string, score float64) {
	r.score.WithLabelValues(botID).Set(score)
}

func (r *Recorder) IncRejection(botID string, reason domain.RejectReason) {
	r.rejections.WithLabelValues(botID, string(reason)).Inc()
}

func (r *Recorder) IncExecution(botID string, outcome domain.AttemptOutcome) {
	r.executions.WithLabelValues(botID, string(outcome)).Inc()
}

func (r *Recorder) IncCache(result string) {
	r.cache.WithLabelValues(result).Inc()
}
