package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	UsersCreated prometheus.Counter
	HTTPRequests *prometheus.CounterVec
	GRPCRequests *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New creates the metrics and registers them on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	return NewWithRegistry(reg, reg)
}

// NewWithRegistry creates the metrics on reg and serves them from g.
func NewWithRegistry(reg prometheus.Registerer, g prometheus.Gatherer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		UsersCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "user_service_users_created_total",
			Help: "Total number of users created in the system",
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "user_service_http_requests_total",
			Help: "HTTP requests by method, route and status code",
		}, []string{"method", "route", "status"}),
		GRPCRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "user_service_grpc_requests_total",
			Help: "gRPC requests by method and status code",
		}, []string{"method", "code"}),
		gatherer: g,
	}
}

// IncUsersCreated increments the users created counter by 1
func (m *Metrics) IncUsersCreated() {
	m.UsersCreated.Inc()
}

// ObserveHTTPRequest counts one finished HTTP request.
func (m *Metrics) ObserveHTTPRequest(method, route, status string) {
	m.HTTPRequests.WithLabelValues(method, route, status).Inc()
}

// ObserveGRPCRequest counts one finished gRPC call.
func (m *Metrics) ObserveGRPCRequest(method, code string) {
	m.GRPCRequests.WithLabelValues(method, code).Inc()
}

// Handler returns the HTTP handler exposing the metrics in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
