package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/nerdneilsfield/guided-translator/pkg/keypool"
	"github.com/nerdneilsfield/guided-translator/pkg/llm"
)

// EnvPrefix 环境变量前缀
const EnvPrefix = "GUIDED"

// ConfigName 配置文件名（不含扩展名）
const ConfigName = ".guided-translator"

// LLMConfig 模型调用配置
type LLMConfig struct {
	SDK             string        `mapstructure:"sdk"`
	BaseURL         string        `mapstructure:"base_url"`
	Model           string        `mapstructure:"model"`
	VisionModel     string        `mapstructure:"vision_model"`
	Temperature     float64       `mapstructure:"temperature"`
	MaxOutputTokens int           `mapstructure:"max_output_tokens"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	RPMLimit        int           `mapstructure:"rpm_limit"`
}

// ChunkConfig 分块配置
type ChunkConfig struct {
	MaxTokens int `mapstructure:"max_tokens"`
}

// BatchConfig 批次配置
type BatchConfig struct {
	Delay time.Duration `mapstructure:"delay"`
}

// RateLimitConfig 限流冷却配置
type RateLimitConfig struct {
	CooldownSeconds int `mapstructure:"cooldown_seconds"`
	MaxRetries      int `mapstructure:"max_retries"`
}

// ExtractConfig 提取配置
type ExtractConfig struct {
	VisionEnabled bool  `mapstructure:"vision_enabled"`
	Validate      bool  `mapstructure:"validate"`
	MaxFileMB     int64 `mapstructure:"max_file_mb"`
}

// StoreConfig 存储配置
type StoreConfig struct {
	Dir string `mapstructure:"dir"`
}

// ExportConfig 导出配置
type ExportConfig struct {
	FontPath string `mapstructure:"font_path"`
}

// Config 保存翻译器的所有配置
type Config struct {
	LLM       LLMConfig        `mapstructure:"llm"`
	Keys      []keypool.APIKey `mapstructure:"keys"`
	Chunk     ChunkConfig      `mapstructure:"chunk"`
	Batch     BatchConfig      `mapstructure:"batch"`
	RateLimit RateLimitConfig  `mapstructure:"rate_limit"`
	Extract   ExtractConfig    `mapstructure:"extract"`
	Store     StoreConfig      `mapstructure:"store"`
	Export    ExportConfig     `mapstructure:"export"`
	Debug     bool             `mapstructure:"debug"`
	LogFile   string           `mapstructure:"log_file"`
}

// LoadConfig 依次读取 .env、配置文件与 GUIDED_ 环境变量。
// configPath 为空时在家目录和当前目录查找 .guided-translator.yaml，找不到则使用默认值。
func LoadConfig(configPath string) (*Config, error) {
	// .env 不存在是正常情况
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigName(ConfigName)
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	cfg.Keys = append(cfg.Keys, ParseKeyList(v.GetString("api_keys"), false)...)
	cfg.Keys = append(cfg.Keys, ParseKeyList(v.GetString("paid_api_keys"), true)...)

	if cfg.Store.Dir == "" {
		cfg.Store.Dir = defaultStoreDir()
	}
	return &cfg, nil
}

// NewDefaultConfig 创建默认配置，不含任何密钥
func NewDefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			SDK:             llm.SDKOpenAI,
			BaseURL:         llm.DefaultBaseURL,
			Model:           "gemini-2.0-flash",
			VisionModel:     "gemini-2.0-flash",
			Temperature:     0.1,
			MaxOutputTokens: 8192,
			RequestTimeout:  120 * time.Second,
			RPMLimit:        15,
		},
		Chunk:     ChunkConfig{MaxTokens: 800},
		Batch:     BatchConfig{Delay: 1500 * time.Millisecond},
		RateLimit: RateLimitConfig{CooldownSeconds: 60, MaxRetries: 3},
		Extract:   ExtractConfig{VisionEnabled: true, Validate: false, MaxFileMB: 50},
		Store:     StoreConfig{Dir: defaultStoreDir()},
	}
}

func setDefaults(v *viper.Viper) {
	d := NewDefaultConfig()
	v.SetDefault("llm.sdk", d.LLM.SDK)
	v.SetDefault("llm.base_url", d.LLM.BaseURL)
	v.SetDefault("llm.model", d.LLM.Model)
	v.SetDefault("llm.vision_model", d.LLM.VisionModel)
	v.SetDefault("llm.temperature", d.LLM.Temperature)
	v.SetDefault("llm.max_output_tokens", d.LLM.MaxOutputTokens)
	v.SetDefault("llm.request_timeout", d.LLM.RequestTimeout)
	v.SetDefault("llm.rpm_limit", d.LLM.RPMLimit)
	v.SetDefault("chunk.max_tokens", d.Chunk.MaxTokens)
	v.SetDefault("batch.delay", d.Batch.Delay)
	v.SetDefault("rate_limit.cooldown_seconds", d.RateLimit.CooldownSeconds)
	v.SetDefault("rate_limit.max_retries", d.RateLimit.MaxRetries)
	v.SetDefault("extract.vision_enabled", d.Extract.VisionEnabled)
	v.SetDefault("extract.validate", d.Extract.Validate)
	v.SetDefault("extract.max_file_mb", d.Extract.MaxFileMB)
	v.SetDefault("store.dir", "")
	v.SetDefault("export.font_path", "")
	v.SetDefault("debug", false)
	v.SetDefault("log_file", "")
	v.SetDefault("api_keys", "")
	v.SetDefault("paid_api_keys", "")
}

// ParseKeyList 解析逗号分隔的密钥列表
func ParseKeyList(raw string, paid bool) []keypool.APIKey {
	var keys []keypool.APIKey
	for _, part := range strings.Split(raw, ",") {
		if k := strings.TrimSpace(part); k != "" {
			keys = append(keys, keypool.APIKey{Key: k, IsPaid: paid})
		}
	}
	return keys
}

// Validate 检查配置是否可用于翻译
func (c *Config) Validate() error {
	if len(c.Keys) == 0 {
		return fmt.Errorf("未配置 API 密钥 (设置 %s_API_KEYS 或配置文件 keys): %w", EnvPrefix, keypool.ErrEmptyPool)
	}
	switch c.LLM.SDK {
	case llm.SDKOpenAI, llm.SDKGoOpenAI:
	default:
		return fmt.Errorf("不支持的 llm.sdk: %q", c.LLM.SDK)
	}
	if c.LLM.Model == "" {
		return errors.New("llm.model 不能为空")
	}
	if c.LLM.MaxOutputTokens <= 0 {
		return fmt.Errorf("llm.max_output_tokens 必须为正数: %d", c.LLM.MaxOutputTokens)
	}
	if c.Chunk.MaxTokens <= 0 {
		return fmt.Errorf("chunk.max_tokens 必须为正数: %d", c.Chunk.MaxTokens)
	}
	if c.RateLimit.CooldownSeconds < 0 || c.RateLimit.MaxRetries < 0 {
		return errors.New("rate_limit 参数不能为负数")
	}
	if c.Batch.Delay < 0 {
		return errors.New("batch.delay 不能为负数")
	}
	if c.Extract.MaxFileMB <= 0 {
		return fmt.Errorf("extract.max_file_mb 必须为正数: %d", c.Extract.MaxFileMB)
	}
	return nil
}

// MaxFileBytes 上传文件大小上限（字节）
func (c *Config) MaxFileBytes() int64 {
	return c.Extract.MaxFileMB << 20
}

// defaultStoreDir 获取默认项目存储目录
func defaultStoreDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "guided-translator", "projects")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".guided-translator", "projects")
	}
	return "./guided-translator-projects"
}
