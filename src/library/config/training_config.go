package config

import (
	"fmt"

	"SplatSphere/src/library/logger"
)

// 优化器类型
const (
	OptimizerDefault    = "default"
	OptimizerSparseAdam = "sparse_adam"
)

// 检查点存储后端
const (
	BackendBolt   = "bolt"
	BackendBadger = "badger"
)

// DBSCANConfig 基于密度的离群点剔除配置
type DBSCANConfig struct {
	Enable     bool    `yaml:"enable" json:"enable"`
	Eps        float64 `yaml:"eps" json:"eps"`
	MinSamples int     `yaml:"min_samples" json:"min_samples"`
}

// CheckpointConfig 检查点存储配置
type CheckpointConfig struct {
	Backend string         `yaml:"backend" json:"backend"`
	Path    string         `yaml:"path" json:"path"`
	Bucket  string         `yaml:"bucket" json:"bucket"`
	Retry   *RetryPolicy   `yaml:"retry,omitempty" json:"retry,omitempty"`
	Breaker *BreakerConfig `yaml:"breaker,omitempty" json:"breaker,omitempty"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level     string `yaml:"level" json:"level"`
	File      string `yaml:"file" json:"file"`
	MaxSizeMB int64  `yaml:"max_size_mb" json:"max_size_mb"`
	Stdout    bool   `yaml:"stdout" json:"stdout"`
}

// TrainingConfig 致密化与剪枝的全部可调参数
type TrainingConfig struct {
	SHDegree             int     `yaml:"sh_degree" json:"sh_degree"`
	PercentDense         float64 `yaml:"percent_dense" json:"percent_dense"`
	PositionLRInit       float64 `yaml:"position_lr_init" json:"position_lr_init"`
	FeatureLR            float64 `yaml:"feature_lr" json:"feature_lr"`
	OpacityLR            float64 `yaml:"opacity_lr" json:"opacity_lr"`
	ScalingLR            float64 `yaml:"scaling_lr" json:"scaling_lr"`
	RotationLR           float64 `yaml:"rotation_lr" json:"rotation_lr"`
	DensifyGradThreshold float64 `yaml:"densify_grad_threshold" json:"densify_grad_threshold"`
	MinOpacity           float64 `yaml:"min_opacity" json:"min_opacity"`
	MaxScreenSize        float64 `yaml:"max_screen_size" json:"max_screen_size"`
	SplitChildren        int     `yaml:"split_children" json:"split_children"`
	OptimizerType        string  `yaml:"optimizer_type" json:"optimizer_type"`
	Seed                 uint64  `yaml:"seed" json:"seed"`
	IsolationThreshold   float64 `yaml:"isolation_threshold" json:"isolation_threshold"`

	DBSCAN     DBSCANConfig     `yaml:"dbscan" json:"dbscan"`
	Checkpoint CheckpointConfig `yaml:"checkpoint" json:"checkpoint"`
	Log        LogConfig        `yaml:"log" json:"log"`
}

// GetDefaultTrainingConfig 返回默认训练配置
func GetDefaultTrainingConfig() *TrainingConfig {
	return &TrainingConfig{
		SHDegree:             3,
		PercentDense:         0.01,
		PositionLRInit:       0.00016,
		FeatureLR:            0.0025,
		OpacityLR:            0.025,
		ScalingLR:            0.005,
		RotationLR:           0.001,
		DensifyGradThreshold: 0.0002,
		MinOpacity:           0.005,
		MaxScreenSize:        20,
		SplitChildren:        2,
		OptimizerType:        OptimizerDefault,
		Seed:                 0,
		IsolationThreshold:   0.05,
		DBSCAN: DBSCANConfig{
			Enable:     false,
			Eps:        0.8,
			MinSamples: 40,
		},
		Checkpoint: CheckpointConfig{
			Backend: BackendBolt,
			Path:    "checkpoints.db",
			Bucket:  "splatsphere",
			Retry:   DefaultRetryPolicy(),
			Breaker: DefaultBreakerConfig(),
		},
		Log: LogConfig{
			Level:     "INFO",
			MaxSizeMB: 100,
			Stdout:    true,
		},
	}
}

// Validate 校验配置取值
func (c *TrainingConfig) Validate() error {
	if c.SHDegree < 0 {
		return fmt.Errorf("sh_degree 不能为负数: %d", c.SHDegree)
	}
	if c.PercentDense <= 0 || c.PercentDense > 1 {
		return fmt.Errorf("percent_dense 必须在 (0,1] 内: %v", c.PercentDense)
	}
	lrs := map[string]float64{
		"position_lr_init": c.PositionLRInit,
		"feature_lr":       c.FeatureLR,
		"opacity_lr":       c.OpacityLR,
		"scaling_lr":       c.ScalingLR,
		"rotation_lr":      c.RotationLR,
	}
	for name, lr := range lrs {
		if lr <= 0 {
			return fmt.Errorf("%s 必须为正数: %v", name, lr)
		}
	}
	if c.DensifyGradThreshold < 0 {
		return fmt.Errorf("densify_grad_threshold 不能为负数: %v", c.DensifyGradThreshold)
	}
	if c.MinOpacity < 0 || c.MinOpacity >= 1 {
		return fmt.Errorf("min_opacity 必须在 [0,1) 内: %v", c.MinOpacity)
	}
	if c.MaxScreenSize < 0 {
		return fmt.Errorf("max_screen_size 不能为负数: %v", c.MaxScreenSize)
	}
	if c.SplitChildren < 1 {
		return fmt.Errorf("split_children 至少为 1: %d", c.SplitChildren)
	}
	switch c.OptimizerType {
	case OptimizerDefault, OptimizerSparseAdam:
	default:
		return fmt.Errorf("未知的优化器类型: %q", c.OptimizerType)
	}
	if c.IsolationThreshold < 0 {
		return fmt.Errorf("isolation_threshold 不能为负数: %v", c.IsolationThreshold)
	}
	if c.DBSCAN.Enable {
		if c.DBSCAN.Eps <= 0 {
			return fmt.Errorf("dbscan.eps 必须为正数: %v", c.DBSCAN.Eps)
		}
		if c.DBSCAN.MinSamples < 1 {
			return fmt.Errorf("dbscan.min_samples 至少为 1: %d", c.DBSCAN.MinSamples)
		}
	}
	switch c.Checkpoint.Backend {
	case BackendBolt, BackendBadger:
	default:
		return fmt.Errorf("未知的检查点后端: %q", c.Checkpoint.Backend)
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}
