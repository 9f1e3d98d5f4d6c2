package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ComparisonDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "newssim_comparison_duration_seconds",
			Help:    "Pairwise article comparison duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		},
	)

	ComparisonsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newssim_comparisons_total",
			Help: "Total pairwise comparisons processed",
		},
		[]string{"status"},
	)

	WikiFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newssim_wiki_fetches_total",
			Help: "Live encyclopedia article fetches by outcome",
		},
		[]string{"outcome"},
	)

	WikiSearches = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "newssim_wiki_searches_total",
			Help: "Live encyclopedia searches performed",
		},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newssim_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newssim_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	NEPairsEvaluated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "newssim_ne_pairs_evaluated_total",
			Help: "Reference article pairs scored during NE similarity",
		},
	)

	EMDComputations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "newssim_emd_computations_total",
			Help: "Earth mover's distance computations",
		},
	)
)

func Init() {
	prometheus.MustRegister(ComparisonDuration)
	prometheus.MustRegister(ComparisonsTotal)
	prometheus.MustRegister(WikiFetches)
	prometheus.MustRegister(WikiSearches)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(NEPairsEvaluated)
	prometheus.MustRegister(EMDComputations)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
