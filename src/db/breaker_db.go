package db

import (
	"github.com/sony/gobreaker"

	"SplatSphere/src/library/config"
)

// BreakerKvDb 写操作经过熔断器：连续失败达到阈值后直接返回 gobreaker.ErrOpenState，
// 读操作不受影响
type BreakerKvDb struct {
	KvDb
	cb *gobreaker.CircuitBreaker
}

// WrapBreaker 为存储加上写入熔断，cfg 为 nil 时使用默认配置
func WrapBreaker(kvDb KvDb, cfg *config.BreakerConfig) *BreakerKvDb {
	if cfg == nil {
		cfg = config.DefaultBreakerConfig()
	}
	return &BreakerKvDb{KvDb: kvDb, cb: gobreaker.NewCircuitBreaker(cfg.Settings())}
}

func (b *BreakerKvDb) write(fn func() error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	return err
}

func (b *BreakerKvDb) Set(key, value []byte) error {
	return b.write(func() error { return b.KvDb.Set(key, value) })
}

func (b *BreakerKvDb) BatchSet(keys, values [][]byte) error {
	return b.write(func() error { return b.KvDb.BatchSet(keys, values) })
}

func (b *BreakerKvDb) Del(key []byte) error {
	return b.write(func() error { return b.KvDb.Del(key) })
}

func (b *BreakerKvDb) BatchDel(keys [][]byte) error {
	return b.write(func() error { return b.KvDb.BatchDel(keys) })
}

// State 熔断器当前状态
func (b *BreakerKvDb) State() gobreaker.State {
	return b.cb.State()
}
