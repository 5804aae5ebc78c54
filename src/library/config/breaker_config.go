package config

import (
	"time"

	"github.com/sony/gobreaker"

	"SplatSphere/src/library/logger"
)

// BreakerConfig 检查点写入熔断配置
type BreakerConfig struct {
	Name string `yaml:"name" json:"name"`
	// MaxRequests 半开状态下允许的请求数
	MaxRequests uint32 `yaml:"max_requests" json:"max_requests"`
	// Interval 闭合状态下计数器的重置周期，0 表示不重置
	Interval time.Duration `yaml:"interval" json:"interval"`
	// Timeout 打开状态持续多久后进入半开
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
	// ConsecutiveFailures 连续失败多少次后熔断
	ConsecutiveFailures uint32 `yaml:"consecutive_failures" json:"consecutive_failures"`
}

// DefaultBreakerConfig 默认熔断配置
func DefaultBreakerConfig() *BreakerConfig {
	return &BreakerConfig{
		Name:                "checkpoint",
		MaxRequests:         1,
		Interval:            0,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 3,
	}
}

// Settings 转换为 gobreaker 配置
func (c *BreakerConfig) Settings() gobreaker.Settings {
	threshold := c.ConsecutiveFailures
	if threshold == 0 {
		threshold = 1
	}
	return gobreaker.Settings{
		Name:        c.Name,
		MaxRequests: c.MaxRequests,
		Interval:    c.Interval,
		Timeout:     c.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warning("熔断器 %s 状态变化: %s -> %s", name, from, to)
		},
	}
}
