package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"ethio-home/internal/core/metrics"
)

// Metrics 按路由模板记录请求数与耗时；未匹配的路由归为 unmatched
func Metrics(engine string) gin.HandlerFunc {
	inflight := metrics.HTTPInFlight.WithLabelValues(engine)
	return func(c *gin.Context) {
		start := time.Now()
		inflight.Inc()
		defer inflight.Dec()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequests.WithLabelValues(engine, route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPLatency.WithLabelValues(engine, route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}

func reject(reason string) { metrics.HTTPRejected.WithLabelValues(reason).Inc() }
