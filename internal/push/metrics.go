package push

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics はファンアウト配信に関するPrometheusメトリクス。
// nilのMetricsに対するメソッド呼び出しは何もしない。
type Metrics struct {
	// DeliveriesTotal は配信結果の件数（status, error_code別）。
	DeliveriesTotal *prometheus.CounterVec
	// BulkCallsTotal は一括送信APIの呼び出し回数（result別）。
	BulkCallsTotal *prometheus.CounterVec
	// SingleSendsTotal は個別送信APIの呼び出し回数（status別）。
	SingleSendsTotal *prometheus.CounterVec
	// DispatchDuration は1回の配信処理にかかった時間。
	DispatchDuration prometheus.Histogram
}

// NewMetrics はメトリクスを生成してregに登録する。
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		DeliveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "push_deliveries_total",
				Help: "Total number of push delivery outcomes by status and error code",
			},
			[]string{"status", "error_code"},
		),
		BulkCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "push_bulk_calls_total",
				Help: "Total number of bulk send calls by result",
			},
			[]string{"result"},
		),
		SingleSendsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "push_single_sends_total",
				Help: "Total number of single send calls by status",
			},
			[]string{"status"},
		),
		DispatchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "push_dispatch_duration_seconds",
				Help:    "Time taken for one fan-out dispatch",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
			},
		),
	}

	for _, c := range []prometheus.Collector{m.DeliveriesTotal, m.BulkCallsTotal, m.SingleSendsTotal, m.DispatchDuration} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("メトリクスの登録に失敗: %w", err)
		}
	}
	return m, nil
}

func (m *Metrics) observeDispatch(s Summary, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.DispatchDuration.Observe(elapsed.Seconds())
	for _, o := range s.Outcomes {
		if o.Success {
			m.DeliveriesTotal.WithLabelValues("success", "").Inc()
		} else {
			m.DeliveriesTotal.WithLabelValues("failure", string(o.ErrorCode)).Inc()
		}
	}
}

func (m *Metrics) observeBulk(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.BulkCallsTotal.WithLabelValues("ok").Inc()
		return
	}
	m.BulkCallsTotal.WithLabelValues("failed").Inc()
}

func (m *Metrics) observeSend(o Outcome) {
	if m == nil {
		return
	}
	if o.Success {
		m.SingleSendsTotal.WithLabelValues("success").Inc()
		return
	}
	m.SingleSendsTotal.WithLabelValues("failure").Inc()
}
