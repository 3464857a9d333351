// Package config 加载应用配置。
// 优先级：环境变量 > 配置文件 > 默认值。
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// EngineConfig 执行引擎节奏配置
type EngineConfig struct {
	QuotePollMs     int     // 盘口轮询间隔（毫秒），默认 250
	StatusPollMs    int     // 订单状态轮询间隔（毫秒），默认 200
	GraceMs         int     // 提交后乐观宽限期（毫秒），默认 300
	WatchdogSeconds int     // 在途超时（秒），默认 30
	MinOrderUSDC    float64 // 最小名义金额，默认 1.0
	DefaultSlippage float64 // 默认滑点容忍（百分比），默认 2.0
	OrderBehavior   string  // FAK 或 GTC，默认 FAK
	DryRun          bool    // 纸面模式
}

// ClobConfig CLOB 接入配置
type ClobConfig struct {
	Host      string // REST 主机
	TimeoutMs int    // 单请求超时（毫秒），默认 10000
}

// Config 应用配置
type Config struct {
	Clob     ClobConfig
	Engine   EngineConfig
	LogLevel string
	LogFile  string
}

// ConfigFile 配置文件结构（用于 YAML 解析）
type ConfigFile struct {
	Clob struct {
		Host      string `yaml:"host"`
		TimeoutMs int    `yaml:"timeout_ms"`
	} `yaml:"clob"`
	Engine struct {
		QuotePollMs     int     `yaml:"quote_poll_ms"`
		StatusPollMs    int     `yaml:"status_poll_ms"`
		GraceMs         int     `yaml:"grace_ms"`
		WatchdogSeconds int     `yaml:"watchdog_seconds"`
		MinOrderUSDC    float64 `yaml:"min_order_usdc"`
		DefaultSlippage float64 `yaml:"default_slippage"`
		OrderBehavior   string  `yaml:"order_behavior"`
		DryRun          bool    `yaml:"dry_run"`
	} `yaml:"engine"`
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
}

// Load 加载配置。filePath 为空时只用环境变量与默认值。
func Load(filePath string) (*Config, error) {
	var cf *ConfigFile
	if filePath != "" {
		var err error
		cf, err = loadConfigFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("加载配置文件失败 %s: %w", filePath, err)
		}
	}
	if cf == nil {
		cf = &ConfigFile{}
	}

	config := &Config{
		Clob: ClobConfig{
			Host:      getEnv("CLOB_HOST", orDefault(cf.Clob.Host, "https://clob.polymarket.com")),
			TimeoutMs: parseIntEnv("CLOB_TIMEOUT_MS", orDefaultInt(cf.Clob.TimeoutMs, 10000)),
		},
		Engine: EngineConfig{
			QuotePollMs:     parseIntEnv("QUOTE_POLL_MS", orDefaultInt(cf.Engine.QuotePollMs, 250)),
			StatusPollMs:    parseIntEnv("STATUS_POLL_MS", orDefaultInt(cf.Engine.StatusPollMs, 200)),
			GraceMs:         parseIntEnv("GRACE_MS", orDefaultInt(cf.Engine.GraceMs, 300)),
			WatchdogSeconds: parseIntEnv("WATCHDOG_SECONDS", orDefaultInt(cf.Engine.WatchdogSeconds, 30)),
			MinOrderUSDC:    parseFloatEnv("MIN_ORDER_USDC", orDefaultFloat(cf.Engine.MinOrderUSDC, 1.0)),
			DefaultSlippage: parseFloatEnv("DEFAULT_SLIPPAGE", orDefaultFloat(cf.Engine.DefaultSlippage, 2.0)),
			OrderBehavior:   getEnv("ORDER_BEHAVIOR", orDefault(cf.Engine.OrderBehavior, "FAK")),
			DryRun:          parseBoolEnv("DRY_RUN", cf.Engine.DryRun),
		},
		LogLevel: getEnv("LOG_LEVEL", orDefault(cf.LogLevel, "info")),
		LogFile:  getEnv("LOG_FILE", cf.LogFile),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.Clob.Host == "" {
		return fmt.Errorf("clob host 不能为空")
	}
	if c.Engine.MinOrderUSDC <= 0 {
		return fmt.Errorf("min_order_usdc 必须大于 0")
	}
	if c.Engine.DefaultSlippage < 0 {
		return fmt.Errorf("default_slippage 不能为负")
	}
	if b := c.Engine.OrderBehavior; b != "FAK" && b != "GTC" {
		return fmt.Errorf("order_behavior 必须是 FAK 或 GTC，当前: %s", b)
	}
	return nil
}

// QuotePollInterval 盘口轮询间隔
func (c *Config) QuotePollInterval() time.Duration {
	return time.Duration(c.Engine.QuotePollMs) * time.Millisecond
}

// StatusPollInterval 状态轮询间隔
func (c *Config) StatusPollInterval() time.Duration {
	return time.Duration(c.Engine.StatusPollMs) * time.Millisecond
}

// GracePeriod 提交后宽限期
func (c *Config) GracePeriod() time.Duration {
	return time.Duration(c.Engine.GraceMs) * time.Millisecond
}

// WatchdogTimeout 在途超时
func (c *Config) WatchdogTimeout() time.Duration {
	return time.Duration(c.Engine.WatchdogSeconds) * time.Second
}

// ClobTimeout 单请求超时
func (c *Config) ClobTimeout() time.Duration {
	return time.Duration(c.Clob.TimeoutMs) * time.Millisecond
}

func loadConfigFile(filePath string) (*ConfigFile, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	var cf ConfigFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, err
	}
	return &cf, nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func parseIntEnv(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func parseFloatEnv(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func orDefaultInt(v, def int) int {
	if v != 0 {
		return v
	}
	return def
}

func orDefaultFloat(v, def float64) float64 {
	if v != 0 {
		return v
	}
	return def
}
