package db

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	dbOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "splatsphere_db_operation_duration_seconds",
			Help:    "Duration of checkpoint store operations in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 20), // 100us 到约 100s
		},
		[]string{"db_type", "operation", "status"},
	)
	dbOperationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "splatsphere_db_operations_total",
			Help: "Total number of checkpoint store operations.",
		},
		[]string{"db_type", "operation", "status"},
	)
)

func init() {
	prometheus.MustRegister(dbOperationDuration, dbOperationTotal)
}

// MonitoredKvDb 为每次存储调用记录耗时与结果
type MonitoredKvDb struct {
	KvDb
	dbType string
}

func NewMonitoredKvDb(dbType int, path string, bucket string) (*MonitoredKvDb, error) {
	kvDb, err := GetDb(dbType, path, bucket)
	if err != nil {
		return nil, err
	}
	return WrapMonitored(kvDb, TypeName(dbType)), nil
}

// WrapMonitored 包装已有实例
func WrapMonitored(kvDb KvDb, typeName string) *MonitoredKvDb {
	return &MonitoredKvDb{KvDb: kvDb, dbType: typeName}
}

func (m *MonitoredKvDb) observe(op string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	dbOperationDuration.WithLabelValues(m.dbType, op, status).Observe(time.Since(start).Seconds())
	dbOperationTotal.WithLabelValues(m.dbType, op, status).Inc()
}

// timed 执行一次存储调用并记录
func (m *MonitoredKvDb) timed(op string, fn func() error) error {
	start := time.Now()
	err := fn()
	m.observe(op, start, err)
	return err
}

func (m *MonitoredKvDb) Open() error  { return m.timed("Open", m.KvDb.Open) }
func (m *MonitoredKvDb) Close() error { return m.timed("Close", m.KvDb.Close) }

func (m *MonitoredKvDb) Set(key, value []byte) error {
	return m.timed("Set", func() error { return m.KvDb.Set(key, value) })
}

func (m *MonitoredKvDb) BatchSet(keys, values [][]byte) error {
	return m.timed("BatchSet", func() error { return m.KvDb.BatchSet(keys, values) })
}

func (m *MonitoredKvDb) Get(key []byte) (val []byte, err error) {
	err = m.timed("Get", func() error {
		val, err = m.KvDb.Get(key)
		return err
	})
	return val, err
}

func (m *MonitoredKvDb) BatchGet(keys [][]byte) (vals [][]byte, err error) {
	err = m.timed("BatchGet", func() error {
		vals, err = m.KvDb.BatchGet(keys)
		return err
	})
	return vals, err
}

func (m *MonitoredKvDb) Del(key []byte) error {
	return m.timed("Del", func() error { return m.KvDb.Del(key) })
}

func (m *MonitoredKvDb) BatchDel(keys [][]byte) error {
	return m.timed("BatchDel", func() error { return m.KvDb.BatchDel(keys) })
}

// Has 没有错误返回，统一记为成功
func (m *MonitoredKvDb) Has(key []byte) (exists bool) {
	_ = m.timed("Has", func() error {
		exists = m.KvDb.Has(key)
		return nil
	})
	return exists
}

func (m *MonitoredKvDb) Keys(prefix []byte) (keys [][]byte, err error) {
	err = m.timed("Keys", func() error {
		keys, err = m.KvDb.Keys(prefix)
		return err
	})
	return keys, err
}

func (m *MonitoredKvDb) TotalDb(f func(k, v []byte) error) (count int64, err error) {
	err = m.timed("TotalDb", func() error {
		count, err = m.KvDb.TotalDb(f)
		return err
	})
	return count, err
}

func (m *MonitoredKvDb) TotalKey(f func(k []byte) error) (count int64, err error) {
	err = m.timed("TotalKey", func() error {
		count, err = m.KvDb.TotalKey(f)
		return err
	})
	return count, err
}
