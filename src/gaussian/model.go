package gaussian

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/patrickmn/go-cache"

	"SplatSphere/src/library/acceler"
	"SplatSphere/src/library/algorithm"
	"SplatSphere/src/library/config"
	"SplatSphere/src/library/entity"
	"SplatSphere/src/library/logger"
	"SplatSphere/src/library/monitor"
	"SplatSphere/src/optim"
)

const (
	defaultCacheTTL        = 10 * time.Minute
	defaultCleanupInterval = 20 * time.Minute

	initialOpacity  = 0.1
	minInitialDist2 = 1e-7
)

// GaussianModel 高斯集合及其训练期状态
type GaussianModel struct {
	store *PrimitiveStore

	activeSHDegree int
	maxSHDegree    int
	percentDense   float64
	spatialLRScale float64
	splitChildren  int

	optimizer optim.Optimizer

	pruningCount   int
	clusterCenters []entity.Vec3

	dbscan   config.DBSCANConfig
	rng      *rand.Rand
	selector *acceler.ComputeStrategySelector
	nnCache  *cache.Cache
}

// Option 构造选项
type Option func(*GaussianModel)

// WithSeed 固定分裂采样的随机种子
func WithSeed(seed uint64) Option {
	return func(m *GaussianModel) {
		m.rng = rand.New(rand.NewPCG(seed, seed^0x5851f42d4c957f2d))
	}
}

// WithSelector 指定硬件策略选择器
func WithSelector(sel *acceler.ComputeStrategySelector) Option {
	return func(m *GaussianModel) {
		m.selector = sel
	}
}

// WithDBSCAN 创建时对点云做密度离群点过滤
func WithDBSCAN(cfg config.DBSCANConfig) Option {
	return func(m *GaussianModel) {
		m.dbscan = cfg
	}
}

// NewGaussianModel 创建空模型，shDegree 为球谐最大阶数
func NewGaussianModel(shDegree int, opts ...Option) *GaussianModel {
	if shDegree < 0 {
		shDegree = 0
	}
	m := &GaussianModel{
		store:         NewPrimitiveStore(3 * entity.RestCoefficients(shDegree)),
		maxSHDegree:   shDegree,
		splitChildren: 2,
		nnCache:       cache.New(defaultCacheTTL, defaultCleanupInterval),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.rng == nil {
		m.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if m.selector == nil {
		m.selector = acceler.NewComputeStrategySelector()
	}
	return m
}

func (m *GaussianModel) Store() *PrimitiveStore        { return m.store }
func (m *GaussianModel) Len() int                      { return m.store.Len() }
func (m *GaussianModel) ActiveSHDegree() int           { return m.activeSHDegree }
func (m *GaussianModel) MaxSHDegree() int              { return m.maxSHDegree }
func (m *GaussianModel) SpatialLRScale() float64       { return m.spatialLRScale }
func (m *GaussianModel) PruningCount() int             { return m.pruningCount }
func (m *GaussianModel) Optimizer() optim.Optimizer    { return m.optimizer }
func (m *GaussianModel) ClusterCenters() []entity.Vec3 { return m.clusterCenters }

// OneUpSHDegree 活动阶数加一，已到最大阶数时不变
func (m *GaussianModel) OneUpSHDegree() {
	if m.activeSHDegree < m.maxSHDegree {
		m.activeSHDegree++
		logger.Info("球谐阶数提升到 %d", m.activeSHDegree)
	}
}

// CreateFromPointCloud 由点云初始化高斯集合
func (m *GaussianModel) CreateFromPointCloud(pcd entity.PointCloud, spatialLRScale float64) error {
	if err := pcd.Validate(); err != nil {
		return err
	}
	m.spatialLRScale = spatialLRScale
	logBounds("原始点云", pcd.Points)

	if m.dbscan.Enable {
		filtered, err := m.filterPointCloud(pcd)
		if err != nil {
			return err
		}
		pcd = filtered
		logBounds("密度过滤后", pcd.Points)
	}

	n := pcd.Len()
	prims := NewPrimitives(n, m.store.RestWidth())

	index := algorithm.NewSpatialIndex(pcd.Points)
	dist2 := algorithm.MeanKNearestSquared(index, 3, m.neighborWorkers(n))
	opacity := InverseOpacityActivation(initialOpacity)

	for i, p := range pcd.Points {
		for d := 0; d < 3; d++ {
			prims.XYZ[3*i+d] = float32(p[d])
			prims.FeaturesDC[3*i+d] = RGB2SH(pcd.Colors[i][d])
		}
		s := ScalingInverseActivation(float32(math.Sqrt(math.Max(dist2[i], minInitialDist2))))
		prims.Scaling[3*i], prims.Scaling[3*i+1], prims.Scaling[3*i+2] = s, s, s
		prims.Rotation[4*i] = 1
		prims.Opacity[i] = opacity
	}
	copy(prims.XYZInitial, prims.XYZ)

	if err := m.store.load(prims); err != nil {
		return err
	}
	monitor.Gaussians.Set(float64(n))
	logger.Info("初始高斯数量: %d", n)
	return nil
}

func logBounds(stage string, points []entity.Vec3) {
	size := entity.Bounds(points).Size()
	logger.Info("%s包围盒尺寸: 长(X) %.4f 宽(Y) %.4f 高(Z) %.4f", stage, size[0], size[1], size[2])
}

// optimizerGroups 各字段的学习率，f_rest 为特征学习率的 1/20
func (m *GaussianModel) optimizerGroups(cfg *config.TrainingConfig) []optim.GroupConfig {
	lr := map[entity.Field]float64{
		entity.FieldXYZ:          cfg.PositionLRInit * m.spatialLRScale,
		entity.FieldFeaturesDC:   cfg.FeatureLR,
		entity.FieldFeaturesRest: cfg.FeatureLR / 20.0,
		entity.FieldOpacity:      cfg.OpacityLR,
		entity.FieldScaling:      cfg.ScalingLR,
		entity.FieldRotation:     cfg.RotationLR,
	}
	groups := make([]optim.GroupConfig, 0, len(entity.OptimizableFields))
	for _, f := range entity.OptimizableFields {
		groups = append(groups, optim.GroupConfig{
			Field: f,
			Width: m.store.prims.width(f),
			LR:    lr[f],
		})
	}
	return groups
}

// TrainingSetup 清零累计量，按配置构造优化器并绑定到存储
func (m *GaussianModel) TrainingSetup(cfg *config.TrainingConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	kind, err := optim.ParseKind(cfg.OptimizerType)
	if err != nil {
		return err
	}
	m.percentDense = cfg.PercentDense
	m.splitChildren = cfg.SplitChildren
	m.store.ResetStats()

	opt, err := optim.NewOptimizer(kind, m.optimizerGroups(cfg), m.selector)
	if err != nil {
		return fmt.Errorf("创建优化器失败: %w", err)
	}
	m.optimizer = opt
	m.store.Bind(opt)
	logger.Info("训练配置完成: optimizer=%s percent_dense=%v 高斯数量=%d", opt.Kind(), m.percentDense, m.Len())
	return nil
}

func (m *GaussianModel) requireTrainable() error {
	if m.optimizer == nil {
		return ErrNotTrainable
	}
	return nil
}

// AddDensificationStats 累加可见高斯的屏幕空间梯度范数，viewGrad 每行 2 个分量
func (m *GaussianModel) AddDensificationStats(viewGrad []float32, visible []bool) error {
	n := m.Len()
	if len(visible) != n || len(viewGrad) != 2*n {
		return fmt.Errorf("%w: 梯度 %d，可见性 %d，高斯 %d", ErrMaskLength, len(viewGrad), len(visible), n)
	}
	accum, denom := m.store.gradAccum, m.store.denom
	for i, v := range visible {
		if !v {
			continue
		}
		accum[i] += float32(math.Hypot(float64(viewGrad[2*i]), float64(viewGrad[2*i+1])))
		denom[i]++
	}
	return nil
}

// UpdateMaxRadii 可见高斯的最大投影半径取较大值
func (m *GaussianModel) UpdateMaxRadii(radii []float32, visible []bool) error {
	n := m.Len()
	if len(radii) != n || len(visible) != n {
		return fmt.Errorf("%w: 半径 %d，可见性 %d，高斯 %d", ErrMaskLength, len(radii), len(visible), n)
	}
	maxRadii := m.store.maxRadii2D
	for i, v := range visible {
		if v && radii[i] > maxRadii[i] {
			maxRadii[i] = radii[i]
		}
	}
	return nil
}

// ResetOpacity 将不透明度压到 0.01 以下，动量随之清零
func (m *GaussianModel) ResetOpacity() error {
	if err := m.requireTrainable(); err != nil {
		return err
	}
	current := m.store.Opacity()
	next := make([]float32, len(current))
	for i, o := range current {
		next[i] = InverseOpacityActivation(float32(math.Min(float64(o), 0.01)))
	}
	return m.store.ReplaceField(entity.FieldOpacity, next)
}

// Step 用绑定的优化器对给出梯度的字段做一步更新
func (m *GaussianModel) Step(grads map[entity.Field][]float32, visible []bool) error {
	if err := m.requireTrainable(); err != nil {
		return err
	}
	for _, f := range entity.OptimizableFields {
		g, ok := grads[f]
		if !ok {
			continue
		}
		if err := m.optimizer.Step(f, m.store.Parameter(f), g, visible); err != nil {
			return fmt.Errorf("更新 %s 失败: %w", f, err)
		}
		if f == entity.FieldXYZ {
			m.store.Touch()
		}
	}
	return nil
}

// SetLearningRate 外部调度器调整学习率
func (m *GaussianModel) SetLearningRate(field entity.Field, lr float64) error {
	if err := m.requireTrainable(); err != nil {
		return err
	}
	return m.optimizer.SetLearningRate(field, lr)
}

func (m *GaussianModel) neighborWorkers(n int) int {
	return m.selector.SelectNeighborStrategy(n).Workers
}

// hostPositions 将位置拷到主机侧做近邻或聚类；内存不足时仍然执行但记录告警
func (m *GaussianModel) hostPositions() []entity.Vec3 {
	n := m.Len()
	if !m.selector.HostMemoryFits(uint64(n) * 3 * 8 * 2) {
		logger.Warning("近邻计算需要约 %d 字节主机内存，可能超出可用内存", n*3*8*2)
	}
	return entity.Vec3sFromFloat32(m.store.prims.XYZ)
}

// NearestNeighborDistances 每个高斯到最近其他高斯的距离，按存储版本缓存
func (m *GaussianModel) NearestNeighborDistances() []float64 {
	key := fmt.Sprintf("nn/%d", m.store.Version())
	if v, ok := m.nnCache.Get(key); ok {
		return v.([]float64)
	}
	start := time.Now()
	points := m.hostPositions()
	index := algorithm.NewSpatialIndex(points)
	dists := algorithm.NearestNeighborDistances(index, m.neighborWorkers(len(points)))
	monitor.ObserveStage("nearest_neighbor", start)
	m.nnCache.SetDefault(key, dists)
	return dists
}
