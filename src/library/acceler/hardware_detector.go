package acceler

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/klauspost/cpuid"
	"github.com/shirou/gopsutil/v3/mem"

	"SplatSphere/src/library/logger"
)

// HardwareCapabilities 主机硬件能力
type HardwareCapabilities struct {
	HasAVX2         bool     `json:"has_avx2"`
	HasAVX512       bool     `json:"has_avx512"`
	HasFMA3         bool     `json:"has_fma3"`
	CPUCores        int      `json:"cpu_cores"`
	MemoryTotal     uint64   `json:"memory_total"`     // 物理内存(字节)
	MemoryAvailable uint64   `json:"memory_available"` // 检测时可用内存(字节)
	SpecialFeatures []string `json:"special_features"`
}

// HardwareDetector 硬件检测器
type HardwareDetector struct {
	once         sync.Once
	capabilities HardwareCapabilities
	mu           sync.RWMutex
}

// GlobalHardwareDetector 全局硬件检测器实例
var GlobalHardwareDetector = &HardwareDetector{}

// DetectAllHardware 检测所有硬件能力，只在首次调用时真正检测
func (hd *HardwareDetector) DetectAllHardware() HardwareCapabilities {
	hd.once.Do(func() {
		caps := HardwareCapabilities{
			HasAVX2:   cpuid.CPU.AVX2(),
			HasAVX512: cpuid.CPU.AVX512F() && cpuid.CPU.AVX512DQ(),
			HasFMA3:   cpuid.CPU.FMA3(),
			CPUCores:  runtime.NumCPU(),
		}
		caps.MemoryTotal, caps.MemoryAvailable = hd.getSystemMemory()
		caps.SpecialFeatures = detectSpecialFeatures(caps)

		hd.mu.Lock()
		hd.capabilities = caps
		hd.mu.Unlock()

		logger.Info("硬件检测完成: cores=%d avx2=%v avx512=%v mem_total=%d",
			caps.CPUCores, caps.HasAVX2, caps.HasAVX512, caps.MemoryTotal)
	})
	return hd.GetCapabilities()
}

// getSystemMemory 读取物理内存，失败时返回 0 表示未知
func (hd *HardwareDetector) getSystemMemory() (uint64, uint64) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		logger.Warning("读取系统内存失败: %v", err)
		return 0, 0
	}
	return vm.Total, vm.Available
}

func detectSpecialFeatures(caps HardwareCapabilities) []string {
	features := []string{}
	if caps.HasAVX2 {
		features = append(features, "avx2")
	}
	if caps.HasAVX512 {
		features = append(features, "avx512")
	}
	if caps.HasFMA3 {
		features = append(features, "fma3")
	}
	return features
}

// GetCapabilities 获取硬件能力（线程安全）
func (hd *HardwareDetector) GetCapabilities() HardwareCapabilities {
	hd.mu.RLock()
	defer hd.mu.RUnlock()
	return hd.capabilities
}

// ValidateHardwareRequirements 验证硬件需求
func (hd *HardwareDetector) ValidateHardwareRequirements(requirements HardwareCapabilities) error {
	caps := hd.DetectAllHardware()

	if requirements.HasAVX2 && !caps.HasAVX2 {
		return fmt.Errorf("需要AVX2支持，但当前系统不支持")
	}
	if requirements.HasAVX512 && !caps.HasAVX512 {
		return fmt.Errorf("需要AVX512支持，但当前系统不支持")
	}
	if requirements.CPUCores > caps.CPUCores {
		return fmt.Errorf("需要%d个CPU核心，但当前系统只有%d个", requirements.CPUCores, caps.CPUCores)
	}
	if caps.MemoryTotal > 0 && requirements.MemoryTotal > caps.MemoryTotal {
		return fmt.Errorf("需要%d字节内存，但当前系统只有%d字节", requirements.MemoryTotal, caps.MemoryTotal)
	}
	if caps.MemoryAvailable > 0 && requirements.MemoryAvailable > caps.MemoryAvailable {
		return fmt.Errorf("需要%d字节可用内存，但当前只有%d字节", requirements.MemoryAvailable, caps.MemoryAvailable)
	}
	return nil
}
