// Package metrics 业务指标与 HTTP 指标，统一 ethiohome_ 前缀
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Payments = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ethiohome_payments_total", Help: "Payment outcomes by kind and status"},
		[]string{"kind", "status"},
	)
	PropertiesSold = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "ethiohome_properties_sold_total", Help: "Properties marked sold"},
	)
	Signups = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ethiohome_signups_total", Help: "New accounts by role"},
		[]string{"role"},
	)
	Webhooks = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ethiohome_webhooks_total", Help: "Gateway webhooks by result"},
		[]string{"result"},
	)
)

// HTTP：engine 为 api / admin，route 为 gin 路由模板
var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ethiohome_http_requests_total", Help: "HTTP requests by route and status"},
		[]string{"engine", "route", "method", "status"},
	)
	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ethiohome_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 15},
		}, []string{"engine", "route", "method"},
	)
	HTTPInFlight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "ethiohome_http_in_flight", Help: "Requests currently being served"},
		[]string{"engine"},
	)
	// HTTPRejected 被入口中间件拦下的请求：rate_limit / busy / timeout / too_large
	HTTPRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ethiohome_http_rejected_total", Help: "Requests rejected before reaching a handler"},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(Payments, PropertiesSold, Signups, Webhooks)
	prometheus.MustRegister(HTTPRequests, HTTPLatency, HTTPInFlight, HTTPRejected)
}

// Handler /metrics
func Handler() http.Handler { return promhttp.Handler() }
