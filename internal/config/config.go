// Package config 读取 YAML 配置文件。命令行中显式设置的参数覆盖文件中的值。
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"tabcraft/internal/instrument"
	"tabcraft/internal/types"
)

// Config 配置文件结构
type Config struct {
	Instrument  string                `yaml:"instrument"`
	Workers     int                   `yaml:"workers"`
	LogLevel    string                `yaml:"log_level"`
	Analysis    types.AnalysisOptions `yaml:"analysis"`
	Tab         types.TabOptions      `yaml:"tab"`
	Cache       CacheConfig           `yaml:"cache"`
	Instruments []instrument.Tuning   `yaml:"instruments"`
	Aliases     map[string]string     `yaml:"aliases"`
}

// CacheConfig 结果缓存配置
type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	Dir     string        `yaml:"dir"`
	TTL     time.Duration `yaml:"ttl"`
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Instrument: "guitar",
		LogLevel:   "info",
		Analysis:   types.DefaultAnalysisOptions(),
		Tab:        types.DefaultTabOptions(),
		Cache: CacheConfig{
			Enabled: true,
			Dir:     DefaultCacheDir(),
			TTL:     30 * 24 * time.Hour,
		},
	}
}

// DefaultCacheDir 用户缓存目录下的 tabcraft 子目录，无法确定时返回空
func DefaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "tabcraft")
}

// Load 读取并校验配置文件
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader 在默认配置之上解码 YAML，未出现的字段保持默认值
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 检查配置，所有问题合并返回
func (c *Config) Validate() error {
	var errs []error
	if err := c.Analysis.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("analysis: %w", err))
	}
	if err := c.Tab.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("tab: %w", err))
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers 不能为负数 (当前 %d)", c.Workers))
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.Cache.TTL < 0 {
		errs = append(errs, fmt.Errorf("cache.ttl 不能为负数 (当前 %s)", c.Cache.TTL))
	}

	registry, err := c.Registry()
	if err != nil {
		errs = append(errs, fmt.Errorf("instruments: %w", err))
	} else if _, err := registry.Lookup(c.Instrument); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Registry 返回内置定弦加上配置中自定义乐器的注册表
func (c *Config) Registry() (*instrument.Registry, error) {
	if len(c.Instruments) == 0 && len(c.Aliases) == 0 {
		return instrument.Default(), nil
	}
	return instrument.Extend(c.Instruments, c.Aliases)
}

// ParseLogLevel 解析日志级别，空字符串视为 info
func ParseLogLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("log_level %q 无效，可选: debug, info, warn, error", s)
}
