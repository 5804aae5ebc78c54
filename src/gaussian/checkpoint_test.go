package gaussian

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SplatSphere/src/db"
	"SplatSphere/src/library/config"
	"SplatSphere/src/library/entity"
)

func trainedModel(t *testing.T) *GaussianModel {
	t.Helper()
	m := newLoadedModel(t, syntheticPrimitives(40, 1, 17), 1)
	m.spatialLRScale = 3
	m.OneUpSHDegree()
	setupTraining(t, m)
	warmOptimizer(t, m)
	warmOptimizer(t, m)
	for i := range m.store.gradAccum {
		m.store.gradAccum[i] = float32(i)
		m.store.denom[i] = int32(i % 4)
		m.store.maxRadii2D[i] = float32(2 * i)
	}
	m.pruningCount = 1
	m.clusterCenters = []entity.Vec3{{1, 2, 3}, {4, 5, 6}}
	return m
}

func TestSnapshotEncodeDecode(t *testing.T) {
	m := trainedModel(t)
	snap, err := m.Capture()
	require.NoError(t, err)
	assert.Equal(t, 1, snap.ActiveSHDegree)
	assert.NotEmpty(t, snap.OptimizerState)

	data, err := EncodeSnapshot(snap)
	require.NoError(t, err)
	decoded, err := DecodeSnapshot(data)
	require.NoError(t, err)
	assert.Equal(t, snap, decoded)

	data[len(data)/2] ^= 0xff
	_, err = DecodeSnapshot(data)
	assert.ErrorIs(t, err, ErrCorruptCheckpoint)
	_, err = DecodeSnapshot(data[:5])
	assert.ErrorIs(t, err, ErrCorruptCheckpoint)
}

func TestCaptureIsDeepCopy(t *testing.T) {
	m := trainedModel(t)
	snap, err := m.Capture()
	require.NoError(t, err)
	m.store.prims.XYZ[0] = 1234
	m.store.gradAccum[1] = 1234
	assert.NotEqual(t, float32(1234), snap.Primitives.XYZ[0])
	assert.NotEqual(t, float32(1234), snap.GradAccum[1])
}

func TestRestoreRebindsOptimizer(t *testing.T) {
	m := trainedModel(t)
	snap, err := m.Capture()
	require.NoError(t, err)

	restored := NewGaussianModel(1, WithSeed(7))
	require.NoError(t, restored.Restore(snap, config.GetDefaultTrainingConfig()))
	assertAligned(t, restored)

	again, err := restored.Capture()
	require.NoError(t, err)
	assert.Equal(t, snap, again)

	// 恢复后的结构编辑同步到新绑定的优化器
	mask := make([]bool, restored.Len())
	mask[0], mask[5] = true, true
	_, err = restored.PrunePoints(mask)
	require.NoError(t, err)
	assertAligned(t, restored)
	warmOptimizer(t, restored)
}

func TestRestoreRejectsMismatch(t *testing.T) {
	snap, err := trainedModel(t).Capture()
	require.NoError(t, err)

	other := NewGaussianModel(2)
	assert.Error(t, other.Restore(snap, config.GetDefaultTrainingConfig()))

	snap.Denom = snap.Denom[:3]
	assert.ErrorIs(t, NewGaussianModel(1).Restore(snap, config.GetDefaultTrainingConfig()), ErrRowMismatch)
	assert.Error(t, NewGaussianModel(1).Restore(nil, config.GetDefaultTrainingConfig()))
}

func TestCheckpointBackends(t *testing.T) {
	backends := map[string]int{"bolt": db.BOLT, "badger": db.BADGER}
	for name, kind := range backends {
		t.Run(name, func(t *testing.T) {
			path := ""
			if kind == db.BOLT {
				path = filepath.Join(t.TempDir(), "checkpoints.db")
			}
			kv, err := db.NewMonitoredKvDb(kind, path, "")
			require.NoError(t, err)
			require.NoError(t, kv.Open())
			t.Cleanup(func() { _ = kv.Close() })

			_, _, err = LatestCheckpoint(kv)
			assert.ErrorIs(t, err, db.ErrKeyNotFound)

			m := trainedModel(t)
			require.NoError(t, m.SaveCheckpoint(kv, 7))
			mask := make([]bool, m.Len())
			mask[3], mask[4] = true, true
			_, err = m.PrunePoints(mask)
			require.NoError(t, err)
			require.NoError(t, m.SaveCheckpoint(kv, 30))
			assert.Error(t, m.SaveCheckpoint(kv, -1))

			snap, iteration, err := LatestCheckpoint(kv)
			require.NoError(t, err)
			assert.Equal(t, 30, iteration)
			assert.Equal(t, 38, snap.Primitives.Len())

			first, err := LoadCheckpoint(kv, 7)
			require.NoError(t, err)
			assert.Equal(t, 40, first.Primitives.Len())

			restored := NewGaussianModel(1)
			require.NoError(t, restored.Restore(first, config.GetDefaultTrainingConfig()))
			assert.Equal(t, 40, restored.Len())
			assert.Equal(t, 1, restored.PruningCount())
			assert.Equal(t, []entity.Vec3{{1, 2, 3}, {4, 5, 6}}, restored.ClusterCenters())

			_, err = LoadCheckpoint(kv, 8)
			assert.ErrorIs(t, err, db.ErrKeyNotFound)
		})
	}
}
