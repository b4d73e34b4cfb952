package render

import "github.com/prometheus/client_golang/prometheus"

var linksRendered = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tdformat",
		Name:      "links_rendered_total",
		Help:      "Number of URL-shaped spans rendered, by classification.",
	},
	[]string{"kind"},
)

func init() {
	prometheus.MustRegister(linksRendered)
}
