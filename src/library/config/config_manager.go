package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"SplatSphere/src/library/logger"
)

// ConfigFormat 配置文件格式
type ConfigFormat string

const (
	ConfigFormatJSON ConfigFormat = "json"
	ConfigFormatYAML ConfigFormat = "yaml"
)

// ConfigManager 配置管理器
type ConfigManager struct {
	Training   *TrainingConfig
	configPath string
}

// NewConfigManager 创建配置管理器
func NewConfigManager(configPath string) *ConfigManager {
	return &ConfigManager{configPath: configPath}
}

// LoadConfig 加载配置文件，文件不存在时写出默认配置
func (cm *ConfigManager) LoadConfig() error {
	if _, err := os.Stat(cm.configPath); os.IsNotExist(err) {
		logger.Info("配置文件 %s 不存在，写入默认配置", cm.configPath)
		cm.Training = GetDefaultTrainingConfig()
		return cm.SaveConfig()
	}

	data, err := os.ReadFile(cm.configPath)
	if err != nil {
		return fmt.Errorf("读取配置文件失败: %w", err)
	}

	// 未出现的字段沿用默认值
	cfg := GetDefaultTrainingConfig()
	switch cm.detectConfigFormat() {
	case ConfigFormatJSON:
		err = loadJSONConfig(data, cfg)
	case ConfigFormatYAML:
		err = loadYAMLConfig(data, cfg)
	default:
		err = fmt.Errorf("不支持的配置格式")
	}
	if err != nil {
		return fmt.Errorf("解析配置文件 %s 失败: %w", cm.configPath, err)
	}
	if cfg.Checkpoint.Retry == nil {
		cfg.Checkpoint.Retry = DefaultRetryPolicy()
	}
	if cfg.Checkpoint.Breaker == nil {
		cfg.Checkpoint.Breaker = DefaultBreakerConfig()
	}
	cm.Training = cfg
	return nil
}

// SaveConfig 保存配置文件
func (cm *ConfigManager) SaveConfig() error {
	if cm.Training == nil {
		return fmt.Errorf("没有可保存的配置")
	}
	var (
		data []byte
		err  error
	)
	switch cm.detectConfigFormat() {
	case ConfigFormatJSON:
		data, err = json.MarshalIndent(cm.Training, "", "  ")
	case ConfigFormatYAML:
		data, err = yaml.Marshal(cm.Training)
	default:
		return fmt.Errorf("不支持的配置格式")
	}
	if err != nil {
		return err
	}
	if dir := filepath.Dir(cm.configPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("创建配置目录失败: %w", err)
		}
	}
	return os.WriteFile(cm.configPath, data, 0644)
}

// ValidateConfig 验证配置
func (cm *ConfigManager) ValidateConfig() error {
	if cm.Training == nil {
		return fmt.Errorf("配置尚未加载")
	}
	if err := cm.Training.Validate(); err != nil {
		return fmt.Errorf("training config validation failed: %w", err)
	}
	return nil
}

// GetConfigSummary 获取配置摘要
func (cm *ConfigManager) GetConfigSummary() map[string]interface{} {
	summary := make(map[string]interface{})
	if cm.Training == nil {
		return summary
	}
	summary["training"] = map[string]interface{}{
		"sh_degree":      cm.Training.SHDegree,
		"optimizer_type": cm.Training.OptimizerType,
		"dbscan_enabled": cm.Training.DBSCAN.Enable,
		"checkpoint":     cm.Training.Checkpoint.Backend,
	}
	return summary
}

func (cm *ConfigManager) detectConfigFormat() ConfigFormat {
	switch filepath.Ext(cm.configPath) {
	case ".json":
		return ConfigFormatJSON
	case ".yaml", ".yml":
		return ConfigFormatYAML
	default:
		return ConfigFormatYAML
	}
}

func loadJSONConfig(data []byte, cfg *TrainingConfig) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(cfg)
}

func loadYAMLConfig(data []byte, cfg *TrainingConfig) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(cfg)
}
