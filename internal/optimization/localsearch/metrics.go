package localsearch

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	stepsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "planner",
		Subsystem: "local_search",
		Name:      "steps_total",
		Help:      "Total local search steps taken.",
	})

	movesEvaluatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "planner",
		Subsystem: "local_search",
		Name:      "moves_evaluated_total",
		Help:      "Total candidate moves scored.",
	})

	movesAcceptedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "planner",
		Subsystem: "local_search",
		Name:      "moves_accepted_total",
		Help:      "Total candidate moves accepted by the acceptor.",
	})

	// bestScore holds the levels of the latest best score, most significant
	// level first.
	bestScore = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "planner",
		Subsystem: "local_search",
		Name:      "best_score",
		Help:      "Level values of the most recent best score.",
	}, []string{"level"})

	phaseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "planner",
		Subsystem: "local_search",
		Name:      "phase_duration_seconds",
		Help:      "Duration of local search phases by end reason.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
	}, []string{"reason"})

	solvesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "planner",
		Subsystem: "local_search",
		Name:      "solves_total",
		Help:      "Total solve calls by outcome.",
	}, []string{"status"})
)

func recordBestScore(levels []float64) {
	for i, l := range levels {
		bestScore.WithLabelValues(strconv.Itoa(i)).Set(l)
	}
}
