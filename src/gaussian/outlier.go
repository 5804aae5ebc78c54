package gaussian

import (
	"fmt"
	"time"

	"SplatSphere/src/library/algorithm"
	"SplatSphere/src/library/entity"
	"SplatSphere/src/library/logger"
	"SplatSphere/src/library/monitor"
)

// OutlierReport 一次密度离群点剔除的结果
type OutlierReport struct {
	Before   int
	Noise    int
	Clusters []entity.ClusterSummary
	After    int
}

// densityLabels 在标准化后的坐标上做 DBSCAN
func (m *GaussianModel) densityLabels(points []entity.Vec3, eps float64, minSamples int) ([]int, []entity.ClusterSummary, error) {
	scaler := &algorithm.StandardScaler{}
	normalized := scaler.FitTransform(points)

	labels, err := algorithm.DBSCAN(normalized, eps, minSamples, m.neighborWorkers(len(points)))
	if err != nil {
		return nil, nil, err
	}
	// 质心取原始坐标的均值
	clusters, err := algorithm.ClusterCenters(points, labels)
	if err != nil {
		return nil, nil, err
	}
	return labels, clusters, nil
}

func (m *GaussianModel) recordClusters(clusters []entity.ClusterSummary) {
	m.pruningCount++
	centers := make([]entity.Vec3, len(clusters))
	for i, c := range clusters {
		centers[i] = c.Center
		logger.Info("簇 %d: %d 个点，中心 (%.4f, %.4f, %.4f)", c.Label, c.Size, c.Center[0], c.Center[1], c.Center[2])
	}
	m.clusterCenters = centers
	monitor.ClusterCenters.Set(float64(len(centers)))
}

// filterPointCloud 创建阶段的密度过滤：噪声点不参与初始化
func (m *GaussianModel) filterPointCloud(pcd entity.PointCloud) (entity.PointCloud, error) {
	if pcd.Len() == 0 {
		m.recordClusters(nil)
		return pcd, nil
	}
	defer monitor.ObserveStage("dbscan_init", time.Now())

	labels, clusters, err := m.densityLabels(pcd.Points, m.dbscan.Eps, m.dbscan.MinSamples)
	if err != nil {
		return entity.PointCloud{}, fmt.Errorf("点云密度聚类失败: %w", err)
	}
	keep := make([]bool, len(labels))
	for i, l := range labels {
		keep[i] = l != algorithm.Noise
	}
	m.recordClusters(clusters)
	filtered := pcd.Filter(keep)
	logger.Info("点云密度过滤: %d 个簇，噪声 %d 个，保留 %d/%d", len(clusters), algorithm.CountNoise(labels), filtered.Len(), pcd.Len())
	return filtered, nil
}

// RemoveDensityOutliers 对当前高斯位置做 DBSCAN，删除噪声点并记录各簇中心。
// 通常只在初始化时调用一次，重复调用会记录告警
func (m *GaussianModel) RemoveDensityOutliers(eps float64, minSamples int) (OutlierReport, error) {
	report := OutlierReport{Before: m.Len()}
	if err := m.store.checkAligned(); err != nil {
		return report, err
	}
	if m.pruningCount > 0 {
		logger.Warning("密度离群点剔除已执行过 %d 次，再次执行", m.pruningCount)
	}
	if m.Len() == 0 {
		m.recordClusters(nil)
		return report, nil
	}
	defer monitor.ObserveStage("dbscan", time.Now())

	points := m.hostPositions()
	labels, clusters, err := m.densityLabels(points, eps, minSamples)
	if err != nil {
		return report, fmt.Errorf("密度聚类失败: %w", err)
	}
	mask := make([]bool, len(labels))
	for i, l := range labels {
		mask[i] = l == algorithm.Noise
	}
	report.Noise, err = m.prune(mask, monitor.ReasonDensity)
	if err != nil {
		return report, err
	}
	m.recordClusters(clusters)
	report.Clusters = clusters
	report.After = m.Len()
	logger.Info("密度离群点剔除: %d 个簇，删除 %d 个，剩余 %d 个", len(clusters), report.Noise, report.After)
	return report, nil
}
