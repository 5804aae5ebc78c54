package acceler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectNeighborStrategy(t *testing.T) {
	css := NewComputeStrategySelector()
	caps := css.GetHardwareCapabilities()

	small := css.SelectNeighborStrategy(10)
	assert.False(t, small.Parallel)
	assert.Equal(t, 1, small.Workers)

	large := css.SelectNeighborStrategy(css.ParallelThreshold)
	assert.Equal(t, caps.CPUCores, large.Workers)
	assert.Equal(t, caps.CPUCores > 1, large.Parallel)

	css.MaxWorkers = 1
	assert.Equal(t, NeighborStrategy{Workers: 1}, css.SelectNeighborStrategy(1<<20))
}

func TestSparseKernelsSupported(t *testing.T) {
	css := NewComputeStrategySelector()
	caps := css.GetHardwareCapabilities()
	assert.Equal(t, caps.HasAVX2 || caps.HasAVX512, css.SparseKernelsSupported())
	assert.Equal(t, css.SelectOptimalStrategy() != StrategyStandard, css.SparseKernelsSupported())

	css.DisableSparse = true
	assert.False(t, css.SparseKernelsSupported())
}

func TestSelectOptimalStrategy(t *testing.T) {
	css := NewComputeStrategySelector()
	caps := css.GetHardwareCapabilities()
	s := css.SelectOptimalStrategy()
	switch {
	case caps.HasAVX512:
		assert.Equal(t, StrategyAVX512, s)
	case caps.HasAVX2:
		assert.Equal(t, StrategyAVX2, s)
	default:
		assert.Equal(t, "standard", s.String())
	}
}

func TestHostMemoryFits(t *testing.T) {
	css := NewComputeStrategySelector()
	assert.True(t, css.HostMemoryFits(1024))

	caps := css.GetHardwareCapabilities()
	if caps.MemoryAvailable > 0 {
		assert.False(t, css.HostMemoryFits(caps.MemoryAvailable+1))
	}
}

func TestDetectorIsStable(t *testing.T) {
	first := GlobalHardwareDetector.DetectAllHardware()
	second := GlobalHardwareDetector.DetectAllHardware()
	assert.Equal(t, first, second)
	assert.Greater(t, first.CPUCores, 0)
	assert.NoError(t, GlobalHardwareDetector.ValidateHardwareRequirements(HardwareCapabilities{CPUCores: 1}))
	assert.Error(t, GlobalHardwareDetector.ValidateHardwareRequirements(HardwareCapabilities{CPUCores: first.CPUCores + 1}))
}

func TestValidateAvailableMemory(t *testing.T) {
	caps := GlobalHardwareDetector.DetectAllHardware()
	assert.NoError(t, GlobalHardwareDetector.ValidateHardwareRequirements(HardwareCapabilities{MemoryAvailable: 1}))
	if caps.MemoryAvailable == 0 {
		t.Skip("可用内存未知")
	}
	err := GlobalHardwareDetector.ValidateHardwareRequirements(HardwareCapabilities{MemoryAvailable: caps.MemoryAvailable + 1})
	assert.Error(t, err)
}
