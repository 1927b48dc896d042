package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry 创建自定义 Prometheus Registry，并注册常用采集器
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler 返回 Prometheus 指标 HTTP 处理器
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// DriverMetrics 驱动与采集指标
type DriverMetrics struct {
	CommandTotal    *prometheus.CounterVec   // labels: command, result
	CommandDuration *prometheus.HistogramVec // labels: command
	PollTotal       *prometheus.CounterVec   // labels: result=ok|error
	PublishTotal    *prometheus.CounterVec   // labels: topic, result
	LinkUp          prometheus.Gauge
	DeviceAddress   prometheus.Gauge
}

// NewDriverMetrics 注册并返回驱动指标
func NewDriverMetrics(reg prometheus.Registerer) *DriverMetrics {
	m := &DriverMetrics{
		CommandTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rim_command_total",
			Help: "Device commands by command and result kind.",
		}, []string{"command", "result"}),
		CommandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rim_command_duration_seconds",
			Help:    "Request/response round trip per command.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8},
		}, []string{"command"}),
		PollTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rim_poll_total",
			Help: "Poll cycles by result.",
		}, []string{"result"}),
		PublishTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rim_publish_total",
			Help: "Telemetry publishes by topic and result.",
		}, []string{"topic", "result"}),
		LinkUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rim_link_up",
			Help: "1 when the device link is started.",
		}),
		DeviceAddress: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rim_device_address",
			Help: "Current device address held by the driver.",
		}),
	}
	reg.MustRegister(m.CommandTotal, m.CommandDuration, m.PollTotal, m.PublishTotal, m.LinkUp, m.DeviceAddress)
	return m
}

// ObserveCommand 记录一次命令结果；m 为 nil 时忽略
func (m *DriverMetrics) ObserveCommand(command, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.CommandTotal.WithLabelValues(command, result).Inc()
	m.CommandDuration.WithLabelValues(command).Observe(elapsed.Seconds())
}

// ObservePoll 记录一次采集周期
func (m *DriverMetrics) ObservePoll(result string) {
	if m == nil {
		return
	}
	m.PollTotal.WithLabelValues(result).Inc()
}

// ObservePublish 记录一次遥测发布
func (m *DriverMetrics) ObservePublish(topic, result string) {
	if m == nil {
		return
	}
	m.PublishTotal.WithLabelValues(topic, result).Inc()
}

// SetLinkUp 链路状态
func (m *DriverMetrics) SetLinkUp(up bool) {
	if m == nil {
		return
	}
	if up {
		m.LinkUp.Set(1)
	} else {
		m.LinkUp.Set(0)
	}
}

// SetAddress 当前设备地址
func (m *DriverMetrics) SetAddress(addr uint32) {
	if m == nil {
		return
	}
	m.DeviceAddress.Set(float64(addr))
}
