package monitor

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// 高斯数量
	Gaussians = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "splatsphere_gaussians",
			Help: "Current number of gaussian primitives",
		},
	)

	// 致密化
	Densified = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "splatsphere_densified_total",
			Help: "Total number of primitives added by densification",
		},
		[]string{"op"},
	)

	// 剪枝
	Pruned = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "splatsphere_pruned_total",
			Help: "Total number of primitives removed",
		},
		[]string{"reason"},
	)

	CycleDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "splatsphere_cycle_duration_seconds",
			Help:    "Duration of structural edit stages",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 20),
		},
		[]string{"stage"},
	)

	ClusterCenters = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "splatsphere_cluster_centers",
			Help: "Number of cluster centers kept after density outlier removal",
		},
	)
)

// 剪枝原因标签
const (
	ReasonCombined  = "combined"
	ReasonIsolated  = "isolated"
	ReasonDensity   = "density"
	ReasonSplitFrom = "split_parent"
	ReasonManual    = "manual"
)

func init() {
	prometheus.MustRegister(Gaussians, Densified, Pruned, CycleDuration, ClusterCenters)
}

// ObserveStage 记录阶段耗时，用法: defer monitor.ObserveStage("split", time.Now())
func ObserveStage(stage string, start time.Time) {
	CycleDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
