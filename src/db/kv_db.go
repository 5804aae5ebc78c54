package db

import (
	"errors"
	"fmt"
)

// 存储类型
const (
	BOLT = iota
	BADGER
)

// ErrKeyNotFound 键不存在
var ErrKeyNotFound = errors.New("db: key not found")

// KvDb 键值存储接口，BoltDB 与 BadgerDB 均实现该接口
type KvDb interface {
	Open() error
	GetDbPath() string
	Set(key, value []byte) error
	BatchSet(keys, values [][]byte) error
	Get(key []byte) ([]byte, error)
	BatchGet(keys [][]byte) ([][]byte, error)
	Del(key []byte) error
	BatchDel(keys [][]byte) error
	Has(key []byte) bool
	// Keys 返回带有指定前缀的全部键，按字节序升序
	Keys(prefix []byte) ([][]byte, error)
	TotalDb(f func(k, v []byte) error) (int64, error)
	TotalKey(f func(k []byte) error) (int64, error)
	Close() error
}

// GetDb 按类型创建存储实例，返回前不会打开
func GetDb(dbType int, path string, bucket string) (KvDb, error) {
	switch dbType {
	case BOLT:
		return new(BoltDB).NewInstance(path, bucket), nil
	case BADGER:
		return new(BadgerDB).NewInstance(path), nil
	default:
		return nil, fmt.Errorf("不支持的存储类型: %d", dbType)
	}
}

// TypeName 存储类型名称，用于监控标签
func TypeName(dbType int) string {
	switch dbType {
	case BADGER:
		return "BADGER"
	default:
		return "BOLT"
	}
}

// ParseType 将配置中的后端名称转换为存储类型
func ParseType(backend string) (int, error) {
	switch backend {
	case "bolt", "BOLT", "":
		return BOLT, nil
	case "badger", "BADGER":
		return BADGER, nil
	default:
		return 0, fmt.Errorf("未知的存储后端: %q", backend)
	}
}

func checkBatch(keys, values [][]byte) error {
	if len(keys) != len(values) {
		return fmt.Errorf("批量写入的键值数量不一致: %d vs %d", len(keys), len(values))
	}
	return nil
}
