package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	DefaultMetricsPath = "/metrics"
	RefererKey         = "X-Referer"
)

// HTTP records request count, latency and response size per route.
type HTTP struct {
	reqCnt *prometheus.CounterVec
	reqDur *prometheus.HistogramVec
	resSz  *prometheus.SummaryVec
}

// NewHTTP registers the request collectors on reg.
func NewHTTP(reg prometheus.Registerer) (*HTTP, error) {
	labels := []string{"code", "method", "url", "ref"}
	h := &HTTP{
		reqCnt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: Subsystem,
			Name:      "req_total",
			Help:      "How many HTTP requests processed, partitioned by status code and HTTP method.",
		}, labels),
		reqDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Subsystem: Subsystem,
			Name:      "req_dur_ms",
			Help:      "The HTTP request latencies in milliseconds.",
			Buckets:   HistogramBuckets,
		}, labels),
		resSz: prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Subsystem: Subsystem,
			Name:      "resp_sz_bytes",
			Help:      "The HTTP response sizes in bytes.",
		}, labels),
	}
	for _, c := range []prometheus.Collector{h.reqCnt, h.reqDur, h.resSz} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// HandlerFunc is the gin middleware. The url label is the route template
// (e.g. /api/v1/clients/:id) so ids do not explode cardinality.
func (h *HTTP) HandlerFunc() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == DefaultMetricsPath {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		url := c.FullPath()
		if url == "" {
			url = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		ref := c.Request.Header.Get(RefererKey)

		h.reqDur.WithLabelValues(status, c.Request.Method, url, ref).Observe(MillisecondsSince(start))
		h.reqCnt.WithLabelValues(status, c.Request.Method, url, ref).Inc()
		h.resSz.WithLabelValues(status, c.Request.Method, url, ref).Observe(float64(c.Writer.Size()))
	}
}

// Router builds the engine served on the separate metrics listener.
func Router(g prometheus.Gatherer) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET(DefaultMetricsPath, gin.WrapH(promhttp.HandlerFor(g, promhttp.HandlerOpts{})))
	return r
}
