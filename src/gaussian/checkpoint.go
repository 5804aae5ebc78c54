package gaussian

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"strconv"
	"strings"

	farmhash "github.com/leemcloughlin/gofarmhash"

	"SplatSphere/src/db"
	"SplatSphere/src/library/config"
	"SplatSphere/src/library/entity"
	"SplatSphere/src/library/logger"
	"SplatSphere/src/library/monitor"
	"SplatSphere/src/optim"
)

const checkpointPrefix = "checkpoint/"

// ErrCorruptCheckpoint 校验和不匹配或数据被截断
var ErrCorruptCheckpoint = errors.New("gaussian: corrupt checkpoint")

// Snapshot 恢复训练所需的全部状态
type Snapshot struct {
	ActiveSHDegree int
	MaxSHDegree    int
	Primitives     Primitives
	MaxRadii2D     []float32
	GradAccum      []float32
	Denom          []int32
	OptimizerKind  optim.Kind
	OptimizerState []byte
	SpatialLRScale float64
	PruningCount   int
	ClusterCenters []entity.Vec3
}

// Capture 深拷贝当前状态；未训练时不含优化器状态
func (m *GaussianModel) Capture() (*Snapshot, error) {
	if err := m.store.checkAligned(); err != nil {
		return nil, err
	}
	snap := &Snapshot{
		ActiveSHDegree: m.activeSHDegree,
		MaxSHDegree:    m.maxSHDegree,
		Primitives:     m.store.prims.Clone(),
		MaxRadii2D:     append([]float32(nil), m.store.maxRadii2D...),
		GradAccum:      append([]float32(nil), m.store.gradAccum...),
		Denom:          append([]int32(nil), m.store.denom...),
		SpatialLRScale: m.spatialLRScale,
		PruningCount:   m.pruningCount,
		ClusterCenters: append([]entity.Vec3(nil), m.clusterCenters...),
	}
	if m.optimizer != nil {
		blob, err := m.optimizer.StateDict()
		if err != nil {
			return nil, err
		}
		snap.OptimizerKind = m.optimizer.Kind()
		snap.OptimizerState = blob
	}
	return snap, nil
}

// Restore 先恢复参数，再按 cfg 重建优化器并绑定，最后恢复累计量与优化器状态
func (m *GaussianModel) Restore(snap *Snapshot, cfg *config.TrainingConfig) error {
	if snap == nil {
		return fmt.Errorf("快照为空")
	}
	if snap.MaxSHDegree != m.maxSHDegree {
		return fmt.Errorf("快照球谐阶数 %d 与模型 %d 不一致", snap.MaxSHDegree, m.maxSHDegree)
	}
	prims := snap.Primitives.Clone()
	if err := prims.Validate(); err != nil {
		return err
	}
	n := prims.Len()
	if len(snap.MaxRadii2D) != n || len(snap.GradAccum) != n || len(snap.Denom) != n {
		return fmt.Errorf("%w: 快照参数 %d 行，累计量 %d/%d/%d 行",
			ErrRowMismatch, n, len(snap.GradAccum), len(snap.Denom), len(snap.MaxRadii2D))
	}

	m.store.Bind(nil)
	m.optimizer = nil
	if err := m.store.load(prims); err != nil {
		return err
	}
	m.activeSHDegree = snap.ActiveSHDegree
	m.spatialLRScale = snap.SpatialLRScale

	if err := m.TrainingSetup(cfg); err != nil {
		return err
	}
	copy(m.store.gradAccum, snap.GradAccum)
	copy(m.store.denom, snap.Denom)
	copy(m.store.maxRadii2D, snap.MaxRadii2D)

	if len(snap.OptimizerState) > 0 {
		if snap.OptimizerKind != m.optimizer.Kind() {
			logger.Warning("快照优化器类型 %s，当前 %s，按参数组加载动量", snap.OptimizerKind, m.optimizer.Kind())
		}
		if err := m.optimizer.LoadStateDict(snap.OptimizerState); err != nil {
			return fmt.Errorf("恢复优化器状态失败: %w", err)
		}
		if err := m.store.checkAligned(); err != nil {
			return err
		}
	}

	m.pruningCount = snap.PruningCount
	m.clusterCenters = append([]entity.Vec3(nil), snap.ClusterCenters...)
	monitor.Gaussians.Set(float64(n))
	return nil
}

// EncodeSnapshot gob 编码，前 8 字节为负载的 farmhash 校验和
func EncodeSnapshot(snap *Snapshot) ([]byte, error) {
	var payload bytes.Buffer
	if err := gob.NewEncoder(&payload).Encode(snap); err != nil {
		return nil, fmt.Errorf("编码快照失败: %w", err)
	}
	out := make([]byte, 8, 8+payload.Len())
	binary.LittleEndian.PutUint64(out, farmhash.Hash64(payload.Bytes()))
	return append(out, payload.Bytes()...), nil
}

// DecodeSnapshot EncodeSnapshot 的逆过程
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("%w: 长度 %d", ErrCorruptCheckpoint, len(data))
	}
	payload := data[8:]
	if binary.LittleEndian.Uint64(data[:8]) != farmhash.Hash64(payload) {
		return nil, fmt.Errorf("%w: 校验和不匹配", ErrCorruptCheckpoint)
	}
	snap := &Snapshot{}
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(snap); err != nil {
		return nil, fmt.Errorf("解码快照失败: %w", err)
	}
	return snap, nil
}

func checkpointKey(iteration int) []byte {
	return []byte(fmt.Sprintf("%s%010d", checkpointPrefix, iteration))
}

// SaveCheckpoint 将当前状态写入 kv，键为 checkpoint/<迭代数>
func (m *GaussianModel) SaveCheckpoint(kv db.KvDb, iteration int) error {
	if iteration < 0 {
		return fmt.Errorf("迭代数不能为负: %d", iteration)
	}
	snap, err := m.Capture()
	if err != nil {
		return err
	}
	data, err := EncodeSnapshot(snap)
	if err != nil {
		return err
	}
	if err := kv.Set(checkpointKey(iteration), data); err != nil {
		return fmt.Errorf("写入检查点失败: %w", err)
	}
	logger.Info("检查点 %d 已写入 %s，%d 个高斯，%d 字节", iteration, kv.GetDbPath(), m.Len(), len(data))
	return nil
}

// LoadCheckpoint 读取指定迭代的快照
func LoadCheckpoint(kv db.KvDb, iteration int) (*Snapshot, error) {
	data, err := kv.Get(checkpointKey(iteration))
	if err != nil {
		return nil, fmt.Errorf("读取检查点 %d 失败: %w", iteration, err)
	}
	return DecodeSnapshot(data)
}

// LatestCheckpoint 返回迭代数最大的快照；没有检查点时返回 db.ErrKeyNotFound
func LatestCheckpoint(kv db.KvDb) (*Snapshot, int, error) {
	keys, err := kv.Keys([]byte(checkpointPrefix))
	if err != nil {
		return nil, 0, err
	}
	if len(keys) == 0 {
		return nil, 0, db.ErrKeyNotFound
	}
	last := string(keys[len(keys)-1])
	iteration, err := strconv.Atoi(strings.TrimPrefix(last, checkpointPrefix))
	if err != nil {
		return nil, 0, fmt.Errorf("无法解析检查点键 %q: %w", last, err)
	}
	snap, err := LoadCheckpoint(kv, iteration)
	if err != nil {
		return nil, 0, err
	}
	return snap, iteration, nil
}
