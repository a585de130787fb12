// Package metrics счётчики Prometheus сервиса на собственном реестре
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	reg *prometheus.Registry

	HTTPRequests          *prometheus.CounterVec
	HTTPDuration          *prometheus.HistogramVec
	OrdersPlaced          *prometheus.CounterVec
	PaymentVerifications  *prometheus.CounterVec
	DeliveryStatusChanges *prometheus.CounterVec
	NotificationFailures  *prometheus.CounterVec
	OutboxPublished       *prometheus.CounterVec
	TasksDropped          prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_http_requests_total",
			Help: "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "storefront_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		OrdersPlaced: f.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_orders_placed_total",
			Help: "Orders placed by payment method.",
		}, []string{"payment_method"}),
		PaymentVerifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_payment_verifications_total",
			Help: "Payment verifications by result.",
		}, []string{"result"}),
		DeliveryStatusChanges: f.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_delivery_status_changes_total",
			Help: "Delivery status updates by target status.",
		}, []string{"status"}),
		NotificationFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_notification_relay_failures_total",
			Help: "Notification relays that failed by channel.",
		}, []string{"channel"}),
		OutboxPublished: f.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_outbox_events_total",
			Help: "Outbox events handled by the relay.",
		}, []string{"result"}),
		TasksDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "storefront_tasks_dropped_total",
			Help: "Background tasks dropped because the queue was full.",
		}),
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}
