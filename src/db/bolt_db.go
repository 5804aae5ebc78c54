package db

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	bolt "go.etcd.io/bbolt"

	"SplatSphere/src/library/config"
	"SplatSphere/src/library/logger"
)

// BoltDB 基于 bbolt 的单桶存储
type BoltDB struct {
	db     *bolt.DB
	path   string
	bucket []byte
	retry  *config.RetryPolicy
}

func (b *BoltDB) NewInstance(path, bucket string) *BoltDB {
	if bucket == "" {
		bucket = "splatsphere"
	}
	b.path = path
	b.bucket = []byte(bucket)
	b.retry = config.DefaultRetryPolicy()
	return b
}

// WithRetry 设置打开文件时的重试策略
func (b *BoltDB) WithRetry(p *config.RetryPolicy) *BoltDB {
	if p != nil {
		b.retry = p
	}
	return b
}

func (b *BoltDB) GetDbPath() string {
	return b.path
}

// Open 打开数据库并创建桶；文件被其他进程锁定时按退避策略重试
func (b *BoltDB) Open() error {
	if dir := filepath.Dir(b.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("创建数据目录失败: %w", err)
		}
	}

	open := func() error {
		db, err := bolt.Open(b.path, 0600, &bolt.Options{Timeout: 200 * time.Millisecond})
		if err != nil {
			if errors.Is(err, bolt.ErrTimeout) {
				return err
			}
			return backoff.Permanent(err)
		}
		b.db = db
		return nil
	}
	notify := func(err error, d time.Duration) {
		logger.Warning("打开 %s 失败，%v 后重试: %v", b.path, d, err)
	}
	if err := backoff.RetryNotify(open, b.retry.NewBackOff(), notify); err != nil {
		return fmt.Errorf("打开 bolt 数据库 %s 失败: %w", b.path, err)
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(b.bucket)
		return err
	})
}

func (b *BoltDB) Set(key, value []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(b.bucket).Put(key, value)
	})
}

func (b *BoltDB) BatchSet(keys, values [][]byte) error {
	if err := checkBatch(keys, values); err != nil {
		return err
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(b.bucket)
		for i, k := range keys {
			if err := bucket.Put(k, values[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *BoltDB) Get(key []byte) ([]byte, error) {
	var value []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(b.bucket).Get(key)
		if v == nil {
			return ErrKeyNotFound
		}
		// bbolt 返回的切片只在事务内有效
		value = bytes.Clone(v)
		return nil
	})
	return value, err
}

func (b *BoltDB) BatchGet(keys [][]byte) ([][]byte, error) {
	values := make([][]byte, len(keys))
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(b.bucket)
		for i, k := range keys {
			if v := bucket.Get(k); v != nil {
				values[i] = bytes.Clone(v)
			}
		}
		return nil
	})
	return values, err
}

func (b *BoltDB) Del(key []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(b.bucket).Delete(key)
	})
}

func (b *BoltDB) BatchDel(keys [][]byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(b.bucket)
		for _, k := range keys {
			if err := bucket.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *BoltDB) Has(key []byte) bool {
	found := false
	_ = b.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(b.bucket).Get(key) != nil
		return nil
	})
	return found
}

func (b *BoltDB) Keys(prefix []byte) ([][]byte, error) {
	var keys [][]byte
	err := b.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(b.bucket).Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			keys = append(keys, bytes.Clone(k))
		}
		return nil
	})
	return keys, err
}

func (b *BoltDB) TotalDb(f func(k, v []byte) error) (int64, error) {
	var total int64
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(b.bucket).ForEach(func(k, v []byte) error {
			if err := f(k, v); err != nil {
				return err
			}
			total++
			return nil
		})
	})
	return total, err
}

func (b *BoltDB) TotalKey(f func(k []byte) error) (int64, error) {
	return b.TotalDb(func(k, _ []byte) error { return f(k) })
}

func (b *BoltDB) Close() error {
	if b.db == nil {
		return nil
	}
	err := b.db.Close()
	b.db = nil
	return err
}
