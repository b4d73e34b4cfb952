package discuss

import "github.com/prometheus/client_golang/prometheus"

var (
	queryDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tdformat_queries",
		Name:      "duration_seconds",
		Help:      "Histogram of the time it takes to execute store queries.",
		Buckets:   prometheus.DefBuckets,
	},
		[]string{"function"},
	)

	prepareDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "tdformat",
		Name:      "prepare_comments_duration_seconds",
		Help:      "Histogram of the time it takes to prepare a batch of comments.",
		Buckets:   prometheus.DefBuckets,
	})

	commentsPrepared = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tdformat",
		Name:      "comments_prepared_total",
		Help:      "Number of comments rendered for display, by source markup.",
	},
		[]string{"markup"},
	)
)

func init() {
	prometheus.MustRegister(queryDuration)
	prometheus.MustRegister(prepareDuration)
	prometheus.MustRegister(commentsPrepared)
}
