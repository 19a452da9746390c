package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(buildInfo, cacheRequestsTotal, rateLimitedTotal) }

var (
	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "voucher_engine_build_info",
			Help: "Always 1; labels carry the running version and commit.",
		},
		[]string{"version", "commit"},
	)

	cacheRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voucher_cache_requests_total",
			Help: "Template cache lookups by outcome.",
		},
		[]string{"cache", "result"}, // result: hit, miss, error
	)

	rateLimitedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voucher_rate_limited_total",
			Help: "Requests rejected by the per-client rate limiter.",
		},
		[]string{"group"},
	)
)

func SetBuildInfo(version, commit string) {
	buildInfo.Reset()
	buildInfo.WithLabelValues(version, commit).Set(1)
}

func IncCacheRequest(cache, result string) {
	cacheRequestsTotal.WithLabelValues(norm(cache), norm(result)).Inc()
}

func IncRateLimited(group string) {
	rateLimitedTotal.WithLabelValues(norm(group)).Inc()
}
