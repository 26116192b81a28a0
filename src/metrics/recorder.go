package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder 看板的 Prometheus 指标
type Recorder struct {
	registry *prometheus.Registry

	renderTotal    *prometheus.CounterVec
	renderDuration *prometheus.HistogramVec
	tableRows      *prometheus.GaugeVec
	reloadTotal    *prometheus.CounterVec
	unmappedCodes  *prometheus.GaugeVec
}

// NewRecorder 创建独立的 registry，并注册 Go 运行时与进程指标
func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Recorder{
		registry: registry,
		renderTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dashboard_render_total",
			Help: "Total chart renders by chart and status.",
		}, []string{"chart", "status"}),
		renderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dashboard_render_duration_seconds",
			Help:    "Duration of chart renders.",
			Buckets: prometheus.DefBuckets,
		}, []string{"chart"}),
		tableRows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dashboard_table_rows",
			Help: "Rows in each loaded table.",
		}, []string{"table"}),
		reloadTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dashboard_reload_total",
			Help: "Data reloads by status.",
		}, []string{"status"}),
		unmappedCodes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dashboard_unmapped_codes",
			Help: "Rows whose code had no label in the lookup.",
		}, []string{"column"}),
	}

	registry.MustRegister(r.renderTotal)
	registry.MustRegister(r.renderDuration)
	registry.MustRegister(r.tableRows)
	registry.MustRegister(r.reloadTotal)
	registry.MustRegister(r.unmappedCodes)
	return r
}

// Handler /metrics 输出
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// ObserveRender 记录一次图表渲染：ok、empty 或 error
func (r *Recorder) ObserveRender(chart string, elapsed time.Duration, empty bool, err error) {
	status := "ok"
	switch {
	case err != nil:
		status = "error"
	case empty:
		status = "empty"
	}
	r.renderTotal.WithLabelValues(chart, status).Inc()
	r.renderDuration.WithLabelValues(chart).Observe(elapsed.Seconds())
}

// ObserveLoad 记录加载结果；成功时更新行数和未映射编码数
func (r *Recorder) ObserveLoad(rows map[string]int, unmapped map[string]int, err error) {
	if err != nil {
		r.reloadTotal.WithLabelValues("error").Inc()
		return
	}
	r.reloadTotal.WithLabelValues("ok").Inc()
	for table, n := range rows {
		r.tableRows.WithLabelValues(table).Set(float64(n))
	}
	for col, n := range unmapped {
		r.unmappedCodes.WithLabelValues(col).Set(float64(n))
	}
}
