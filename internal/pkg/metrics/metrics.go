package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics はアプリケーションのメトリクスを管理する
type Metrics struct {
	// HTTPリクエストの総数（method, path, status_code）
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTPリクエストのレイテンシ（method, path）
	HTTPRequestDuration *prometheus.HistogramVec

	// 予約作成の総数（result: success, conflict, not_found, unavailable, invalid, lock_failed, error）
	ReservationsTotal *prometheus.CounterVec

	// 予約状態の遷移数（from, to）
	StatusTransitionsTotal *prometheus.CounterVec

	// 外部サービス呼び出しの所要時間（service, outcome: ok, not_found, unavailable, upstream_error）
	RemoteRequestDuration *prometheus.HistogramVec

	// 分散ロックの操作時間（operation: acquire/release, status: success/failed）
	DistributedLockDuration *prometheus.HistogramVec
}

// New は新しいMetricsインスタンスを作成し、デフォルトレジストリに登録する
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry は指定したレジストリにメトリクスを登録する
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		ReservationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reservations_total",
				Help: "Total number of reservation attempts",
			},
			[]string{"result"},
		),
		StatusTransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reservation_status_transitions_total",
				Help: "Total number of reservation status transitions",
			},
			[]string{"from", "to"},
		),
		RemoteRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "remote_request_duration_seconds",
				Help:    "Latency of calls to collaborating services in seconds",
				Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"service", "outcome"},
		),
		DistributedLockDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "distributed_lock_duration_seconds",
				Help:    "Time spent on distributed lock operations",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"operation", "status"},
		),
	}

	// レジストリに登録
	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.ReservationsTotal,
		m.StatusTransitionsTotal,
		m.RemoteRequestDuration,
		m.DistributedLockDuration,
	)

	return m
}

// ObserveReservation は予約作成の結果を記録する（nil安全）
func (m *Metrics) ObserveReservation(result string) {
	if m == nil {
		return
	}
	m.ReservationsTotal.WithLabelValues(result).Inc()
}

// ObserveTransition は状態遷移を記録する（nil安全）
func (m *Metrics) ObserveTransition(from, to string) {
	if m == nil {
		return
	}
	m.StatusTransitionsTotal.WithLabelValues(from, to).Inc()
}

// ObserveRemote は外部サービス呼び出しの所要時間を記録する（nil安全）
func (m *Metrics) ObserveRemote(service, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.RemoteRequestDuration.WithLabelValues(service, outcome).Observe(seconds)
}

// ObserveLock は分散ロック操作の所要時間を記録する（nil安全）
func (m *Metrics) ObserveLock(operation, status string, seconds float64) {
	if m == nil {
		return
	}
	m.DistributedLockDuration.WithLabelValues(operation, status).Observe(seconds)
}
