package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "boundaries_runs_total",
		Help: "Command executions by subcommand, jurisdiction kind and outcome",
	}, []string{"command", "kind", "status"})
	StageDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "boundaries_stage_duration_seconds",
		Help:    "Pipeline stage duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"stage"})
	UnionRecordsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "boundaries_union_records_total",
		Help: "Records produced by the coastline union before cleanup",
	}, []string{"kind"})
	SliverGroupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "boundaries_sliver_groups_total",
		Help: "Legal-name groups seen by the sliver pass, by member count",
	}, []string{"size"})
	SliverRelocatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "boundaries_sliver_relocated_total",
		Help: "Fragments moved between group members",
	})
	SliverProtectedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "boundaries_sliver_protected_total",
		Help: "Small fragments kept in place because they intersect a protected geometry",
	})
	CoastlineLoadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "boundaries_coastline_loads_total",
		Help: "Coastline materializations by source (store, redis, remote)",
	}, []string{"source"})
	CoastlineFetchRetriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "boundaries_coastline_fetch_retries_total",
		Help: "Retried remote coastline page requests",
	})
)

func init() {
	prometheus.MustRegister(RunsTotal)
	prometheus.MustRegister(StageDurationSeconds)
	prometheus.MustRegister(UnionRecordsTotal)
	prometheus.MustRegister(SliverGroupsTotal)
	prometheus.MustRegister(SliverRelocatedTotal)
	prometheus.MustRegister(SliverProtectedTotal)
	prometheus.MustRegister(CoastlineLoadsTotal)
	prometheus.MustRegister(CoastlineFetchRetriesTotal)
}

// 文档注释：返回 Prometheus 指标监听器
// 背景：常驻进程（或调试时）可挂载到 /metrics；批处理作业改用 Push。
func Handler() http.Handler { return promhttp.Handler() }
