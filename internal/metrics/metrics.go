// Package metrics 提供Prometheus监控指标
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/paiban/campsched/pkg/scheduler"
	"github.com/paiban/campsched/pkg/scheduler/event"
)

const namespace = "campsched"

// Registry 指标注册表
type Registry struct {
	registry *prometheus.Registry
	handler  http.Handler

	requestTotal       *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	generationTotal    *prometheus.CounterVec
	generationDuration *prometheus.HistogramVec
	unmetPreferences   *prometheus.GaugeVec
	gaps               prometheus.Gauge
	forcedPlacements   prometheus.Counter
	relaxedPlacements  prometheus.Counter
	engineEvents       *prometheus.CounterVec
	fairnessGini       prometheus.Gauge
	excessDays         *prometheus.GaugeVec
}

var (
	registry *Registry
	once     sync.Once
)

// GetRegistry 获取全局注册表
func GetRegistry() *Registry {
	once.Do(func() {
		registry = NewRegistry()
	})
	return registry
}

// NewRegistry 创建独立的注册表，测试中使用
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),

		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP请求总数",
		}, []string{"method", "path", "status"}),

		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP请求延迟",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		}, []string{"method", "path"}),

		generationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schedule_generation_total",
			Help:      "排班生成次数",
		}, []string{"ruleset", "status"}),

		generationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "schedule_generation_duration_seconds",
			Help:      "排班生成延迟",
			Buckets:   []float64{0.05, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
		}, []string{"ruleset"}),

		unmetPreferences: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "unmet_preferences",
			Help:      "最近一次排班未满足的前列偏好数",
		}, []string{"band"}),

		gaps: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "schedule_gaps",
			Help:      "最近一次排班的空闲时段数",
		}),

		forcedPlacements: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forced_placements_total",
			Help:      "强制插入次数",
		}),

		relaxedPlacements: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relaxed_placements_total",
			Help:      "放宽约束后的放置次数",
		}),

		engineEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_events_total",
			Help:      "排班引擎事件数",
		}, []string{"kind"}),

		fairnessGini: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fairness_gini",
			Help:      "最近一次排班的满意度基尼系数",
		}),

		excessDays: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "area_excess_days",
			Help:      "最近一次排班各区域超出最少天数的天数",
		}, []string{"area"}),
	}

	r.registry.MustRegister(
		r.requestTotal, r.requestDuration,
		r.generationTotal, r.generationDuration,
		r.unmetPreferences, r.gaps,
		r.forcedPlacements, r.relaxedPlacements,
		r.engineEvents, r.fairnessGini, r.excessDays,
		collectors.NewGoCollector(),
	)
	r.handler = promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
	return r
}

// Handler 返回指标HTTP处理器
func (r *Registry) Handler() http.Handler {
	return r.handler
}

// Gatherer 返回底层采集器
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// RecordRequest 记录HTTP请求指标
func (r *Registry) RecordRequest(method, path string, status int, duration time.Duration) {
	r.requestTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	r.requestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordSchedule 记录一次排班运行
func (r *Registry) RecordSchedule(result *scheduler.Result, duration time.Duration) {
	ruleset := "tc"
	status := "success"
	if result != nil && result.Voyageur {
		ruleset = "voyageur"
	}
	if result == nil || !result.Success {
		status = "failed"
	}
	r.generationTotal.WithLabelValues(ruleset, status).Inc()
	r.generationDuration.WithLabelValues(ruleset).Observe(duration.Seconds())

	if result == nil || result.Diagnostics == nil {
		return
	}
	d := result.Diagnostics
	r.unmetPreferences.WithLabelValues("top5").Set(float64(d.UnmetTop5))
	r.unmetPreferences.WithLabelValues("top10").Set(float64(d.UnmetTop10))
	r.gaps.Set(float64(d.Gaps))
	if d.Fairness != nil {
		r.fairnessGini.Set(d.Fairness.SatisfactionGini)
	}
	for area, excess := range d.ExcessDays {
		r.excessDays.WithLabelValues(area).Set(float64(excess))
	}
}

// Sink 返回统计引擎事件的接收者
func (r *Registry) Sink() event.Sink {
	return &eventSink{registry: r}
}

type eventSink struct {
	registry *Registry
}

func (s *eventSink) Emit(e event.Event) {
	s.registry.engineEvents.WithLabelValues(string(e.Kind)).Inc()
	switch e.Kind {
	case event.AssignmentForced:
		s.registry.forcedPlacements.Inc()
	case event.AssignmentRelaxed:
		s.registry.relaxedPlacements.Inc()
	}
}

// Handler 全局注册表的HTTP处理器
func Handler() http.Handler {
	return GetRegistry().Handler()
}

// RecordRequestMetrics 记录请求指标
func RecordRequestMetrics(method, path string, status int, duration time.Duration) {
	GetRegistry().RecordRequest(method, path, status, duration)
}

// RecordScheduleGeneration 记录排班生成指标
func RecordScheduleGeneration(result *scheduler.Result, duration time.Duration) {
	GetRegistry().RecordSchedule(result, duration)
}
