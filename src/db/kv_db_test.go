package db

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SplatSphere/src/library/config"
)

func openBackends(t *testing.T) map[string]KvDb {
	t.Helper()
	bolt, err := GetDb(BOLT, filepath.Join(t.TempDir(), "ckpt.db"), "test")
	require.NoError(t, err)
	badger, err := GetDb(BADGER, "", "")
	require.NoError(t, err)

	backends := map[string]KvDb{"bolt": bolt, "badger": badger}
	for name, kv := range backends {
		require.NoError(t, kv.Open(), name)
		t.Cleanup(func() { _ = kv.Close() })
	}
	return backends
}

func TestKvDbBasicOperations(t *testing.T) {
	for name, kv := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, kv.Set([]byte("checkpoint/0000000001"), []byte("a")))
			require.NoError(t, kv.Set([]byte("checkpoint/0000000010"), []byte("b")))
			require.NoError(t, kv.Set([]byte("other/1"), []byte("c")))

			v, err := kv.Get([]byte("checkpoint/0000000010"))
			require.NoError(t, err)
			assert.Equal(t, []byte("b"), v)

			_, err = kv.Get([]byte("missing"))
			assert.True(t, errors.Is(err, ErrKeyNotFound))
			assert.False(t, kv.Has([]byte("missing")))
			assert.True(t, kv.Has([]byte("other/1")))

			keys, err := kv.Keys([]byte("checkpoint/"))
			require.NoError(t, err)
			assert.Equal(t, [][]byte{[]byte("checkpoint/0000000001"), []byte("checkpoint/0000000010")}, keys)

			vals, err := kv.BatchGet([][]byte{[]byte("other/1"), []byte("missing")})
			require.NoError(t, err)
			assert.Equal(t, []byte("c"), vals[0])
			assert.Nil(t, vals[1])

			require.NoError(t, kv.Del([]byte("other/1")))
			assert.False(t, kv.Has([]byte("other/1")))

			n, err := kv.TotalKey(func(k []byte) error { return nil })
			require.NoError(t, err)
			assert.Equal(t, int64(2), n)
		})
	}
}

func TestKvDbBatchWrites(t *testing.T) {
	for name, kv := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			keys := [][]byte{[]byte("k1"), []byte("k2"), []byte("k3")}
			require.NoError(t, kv.BatchSet(keys, [][]byte{[]byte("1"), []byte("2"), []byte("3")}))
			assert.Error(t, kv.BatchSet(keys, nil))

			seen := map[string]string{}
			n, err := kv.TotalDb(func(k, v []byte) error {
				seen[string(k)] = string(v)
				return nil
			})
			require.NoError(t, err)
			assert.Equal(t, int64(3), n)
			assert.Equal(t, "2", seen["k2"])

			require.NoError(t, kv.BatchDel(keys[:2]))
			assert.False(t, kv.Has([]byte("k1")))
			assert.True(t, kv.Has([]byte("k3")))
		})
	}
}

func TestBoltReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ckpt.db")
	kv := new(BoltDB).NewInstance(path, "")
	require.NoError(t, kv.Open())
	require.NoError(t, kv.Set([]byte("k"), []byte("v")))
	require.NoError(t, kv.Close())

	again := new(BoltDB).NewInstance(path, "")
	require.NoError(t, again.Open())
	defer again.Close()
	v, err := again.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), v)
	assert.Equal(t, path, again.GetDbPath())
}

func TestGetDbAndParseType(t *testing.T) {
	_, err := GetDb(99, "", "")
	assert.Error(t, err)

	typ, err := ParseType("badger")
	require.NoError(t, err)
	assert.Equal(t, BADGER, typ)
	_, err = ParseType("rocksdb")
	assert.Error(t, err)
	assert.Equal(t, "BOLT", TypeName(BOLT))
}

func TestMonitoredKvDbCountsOperations(t *testing.T) {
	m, err := NewMonitoredKvDb(BADGER, "", "")
	require.NoError(t, err)
	require.NoError(t, m.Open())
	defer m.Close()

	before := testutil.ToFloat64(dbOperationTotal.WithLabelValues("BADGER", "Get", "failure"))
	_, err = m.Get([]byte("nope"))
	assert.ErrorIs(t, err, ErrKeyNotFound)
	assert.Equal(t, before+1, testutil.ToFloat64(dbOperationTotal.WithLabelValues("BADGER", "Get", "failure")))

	require.NoError(t, m.Set([]byte("k"), []byte("v")))
	assert.True(t, m.Has([]byte("k")))
	assert.GreaterOrEqual(t, testutil.ToFloat64(dbOperationTotal.WithLabelValues("BADGER", "Set", "success")), 1.0)
}

func TestOpenCheckpointStore(t *testing.T) {
	cfg := config.GetDefaultTrainingConfig().Checkpoint
	cfg.Path = filepath.Join(t.TempDir(), "nested", "ckpt.db")
	kv, err := OpenCheckpointStore(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })
	assert.Equal(t, cfg.Path, kv.GetDbPath())
	require.NoError(t, kv.Set([]byte("checkpoint/0000000001"), []byte("x")))
	assert.True(t, kv.Has([]byte("checkpoint/0000000001")))

	cfg.Backend = "mysql"
	_, err = OpenCheckpointStore(cfg)
	assert.Error(t, err)
}
