package db

import (
	"SplatSphere/src/library/config"
)

// OpenCheckpointStore 按配置创建并打开检查点存储：
// 后端实例外依次包装监控与写入熔断
func OpenCheckpointStore(cfg config.CheckpointConfig) (KvDb, error) {
	dbType, err := ParseType(cfg.Backend)
	if err != nil {
		return nil, err
	}
	var backend KvDb
	switch dbType {
	case BOLT:
		backend = new(BoltDB).NewInstance(cfg.Path, cfg.Bucket).WithRetry(cfg.Retry)
	default:
		backend = new(BadgerDB).NewInstance(cfg.Path)
	}
	kv := WrapBreaker(WrapMonitored(backend, TypeName(dbType)), cfg.Breaker)
	if err := kv.Open(); err != nil {
		return nil, err
	}
	return kv, nil
}
