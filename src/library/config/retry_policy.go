package config

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy 重试策略配置
type RetryPolicy struct {
	MaxElapsedTime      time.Duration `yaml:"max_elapsed_time" json:"max_elapsed_time"`
	InitialInterval     time.Duration `yaml:"initial_interval" json:"initial_interval"`
	MaxInterval         time.Duration `yaml:"max_interval" json:"max_interval"`
	Multiplier          float64       `yaml:"multiplier" json:"multiplier"`
	RandomizationFactor float64       `yaml:"randomization_factor" json:"randomization_factor"`
}

// DefaultRetryPolicy 打开存储时的默认重试策略
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxElapsedTime:      5 * time.Second,
		InitialInterval:     50 * time.Millisecond,
		MaxInterval:         1 * time.Second,
		Multiplier:          2.0,
		RandomizationFactor: 0.1,
	}
}

// NewBackOff 按策略创建指数退避
func (p *RetryPolicy) NewBackOff() *backoff.ExponentialBackOff {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = p.InitialInterval
	policy.MaxInterval = p.MaxInterval
	policy.MaxElapsedTime = p.MaxElapsedTime
	policy.Multiplier = p.Multiplier
	policy.RandomizationFactor = p.RandomizationFactor
	policy.Reset()
	return policy
}
