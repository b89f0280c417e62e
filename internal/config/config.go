package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	xerrors "omni-agent/internal/errors"
)

// Duration 支持 YAML 中 "15s"、"2m" 这样的写法
type Duration time.Duration

// UnmarshalYAML 解析时长字符串，纯数字按秒处理
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		*d = 0
		return nil
	}
	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}
	var secs float64
	if _, err := fmt.Sscanf(raw, "%g", &secs); err != nil {
		return fmt.Errorf("invalid duration %q", raw)
	}
	*d = Duration(secs * float64(time.Second))
	return nil
}

// MarshalYAML 以字符串形式输出
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std 转换为 time.Duration
func (d Duration) Std() time.Duration { return time.Duration(d) }

// RetryConfig 模型调用的重试配置，所有重试都落在 llm.timeout 之内
type RetryConfig struct {
	Enabled         bool     `yaml:"enabled"`
	MaxRetries      int      `yaml:"max_retries"`
	InitialDelay    Duration `yaml:"initial_delay"`
	MaxDelay        Duration `yaml:"max_delay"`
	ExponentialBase float64  `yaml:"exponential_base"`
}

// LLMConfig LLM 配置
type LLMConfig struct {
	APIKey      string      `yaml:"api_key"`
	APIBase     string      `yaml:"api_base"`
	Model       string      `yaml:"model"`
	Temperature float64     `yaml:"temperature"`
	MaxTokens   int         `yaml:"max_tokens"`
	Timeout     Duration    `yaml:"timeout"`
	Retry       RetryConfig `yaml:"retry"`
}

// TelegramConfig Telegram 机器人配置
type TelegramConfig struct {
	Token          string `yaml:"token"`
	Debug          bool   `yaml:"debug"`
	UpdateTimeout  int    `yaml:"update_timeout"`
	ProcessingText string `yaml:"processing_text"`
}

// ToolsConfig 外部服务地址与凭证
type ToolsConfig struct {
	RelayerURL   string   `yaml:"relayer_url"`
	PriceAPIURL  string   `yaml:"price_api_url"`
	NewsURL      string   `yaml:"news_url"`
	SearchURL    string   `yaml:"search_url"`
	BraveAPIKey  string   `yaml:"brave_api_key"`
	Timeout      Duration `yaml:"timeout"`
	NewsLimit    int      `yaml:"news_limit"`
	TokenListCap int      `yaml:"token_list_cap"`
}

// AgentConfig 对话编排配置
type AgentConfig struct {
	MaxTurns         int    `yaml:"max_turns"`
	MaxToolHops      int    `yaml:"max_tool_hops"`
	TokenLimit       int    `yaml:"token_limit"`
	SystemPromptPath string `yaml:"system_prompt_path"`
}

// SessionConfig 会话存储配置
type SessionConfig struct {
	MaxUsers int      `yaml:"max_users"`
	IdleTTL  Duration `yaml:"idle_ttl"`
}

// CacheConfig 工具响应缓存配置
type CacheConfig struct {
	Driver        string   `yaml:"driver"` // "memory" | "redis" | "none"
	RedisAddr     string   `yaml:"redis_addr"`
	RedisPassword string   `yaml:"redis_password"`
	RedisDB       int      `yaml:"redis_db"`
	Prefix        string   `yaml:"prefix"`
	PriceTTL      Duration `yaml:"price_ttl"`
	NewsTTL       Duration `yaml:"news_ttl"`
	MaxEntries    int      `yaml:"max_entries"`
}

// NewsConfig 新闻摘要配置
type NewsConfig struct {
	SummaryAttempts int      `yaml:"summary_attempts"`
	RetryDelay      Duration `yaml:"retry_delay"`
	SummaryTimeout  Duration `yaml:"summary_timeout"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level         string `yaml:"level"`
	Format        string `yaml:"format"` // "text" | "json"
	Output        string `yaml:"output"` // "stderr" | "stdout" | 文件路径
	AddSource     bool   `yaml:"add_source"`
	TranscriptDir string `yaml:"transcript_dir"`
}

// Config 主配置
type Config struct {
	LLM      LLMConfig      `yaml:"llm"`
	Telegram TelegramConfig `yaml:"telegram"`
	Tools    ToolsConfig    `yaml:"tools"`
	Agent    AgentConfig    `yaml:"agent"`
	Session  SessionConfig  `yaml:"session"`
	Cache    CacheConfig    `yaml:"cache"`
	News     NewsConfig     `yaml:"news"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			APIBase:     "",
			Model:       "gpt-4",
			Temperature: 0.7,
			MaxTokens:   800,
			Timeout:     Duration(15 * time.Second),
			Retry: RetryConfig{
				MaxRetries:      1,
				InitialDelay:    Duration(500 * time.Millisecond),
				MaxDelay:        Duration(2 * time.Second),
				ExponentialBase: 2,
			},
		},
		Telegram: TelegramConfig{
			UpdateTimeout:  60,
			ProcessingText: "⏳ Processing...",
		},
		Tools: ToolsConfig{
			RelayerURL:   "http://localhost:7777",
			PriceAPIURL:  "http://localhost:3000",
			NewsURL:      "https://api.cryptorank.io/v0/news",
			SearchURL:    "https://api.search.brave.com/res/v1/web/search",
			Timeout:      Duration(10 * time.Second),
			NewsLimit:    5,
			TokenListCap: 5,
		},
		Agent: AgentConfig{
			MaxTurns:    10,
			MaxToolHops: 1,
			TokenLimit:  6000,
		},
		Session: SessionConfig{
			MaxUsers: 10000,
			IdleTTL:  Duration(30 * time.Minute),
		},
		Cache: CacheConfig{
			Driver:     "memory",
			Prefix:     "omni-agent:",
			PriceTTL:   Duration(30 * time.Second),
			NewsTTL:    Duration(5 * time.Minute),
			MaxEntries: 1024,
		},
		News: NewsConfig{
			SummaryAttempts: 3,
			RetryDelay:      Duration(2 * time.Second),
			SummaryTimeout:  Duration(30 * time.Second),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// LoadFromFile 从 YAML 文件加载配置
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeConfigInvalid, err, "parse "+path)
	}

	return cfg, nil
}

// Load 加载配置文件并叠加环境变量。
// required 为 false 时文件不存在也不报错。
func Load(path string, required bool) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		loaded, err := LoadFromFile(path)
		switch {
		case err == nil:
			cfg = loaded
		case errors.Is(err, fs.ErrNotExist) && !required:
		default:
			return nil, err
		}
	}
	cfg.ApplyEnv(os.Getenv)
	return cfg, nil
}

// ApplyEnv 使用环境变量覆盖配置，getenv 便于测试注入
func (c *Config) ApplyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&c.Telegram.Token, "TELEGRAM_BOT_TOKEN")
	set(&c.LLM.APIKey, "OPENAI_API_KEY")
	set(&c.LLM.APIBase, "OPENAI_BASE_URL")
	set(&c.LLM.Model, "OPENAI_MODEL")
	set(&c.Tools.RelayerURL, "API_RELAYER_URL")
	set(&c.Tools.PriceAPIURL, "API_URL")
	set(&c.Tools.BraveAPIKey, "BRAVE_SEARCH_API_KEY")
	set(&c.Cache.RedisAddr, "REDIS_ADDR")
	set(&c.Logging.Level, "LOG_LEVEL")
}

// Validate 校验配置，needTelegram 为 true 时要求机器人 token
func (c *Config) Validate(needTelegram bool) error {
	var problems []string
	if c.LLM.APIKey == "" {
		problems = append(problems, "llm.api_key (or OPENAI_API_KEY) is required")
	}
	if c.LLM.Model == "" {
		problems = append(problems, "llm.model is required")
	}
	if c.LLM.Timeout.Std() <= 0 {
		problems = append(problems, "llm.timeout must be positive")
	}
	if c.LLM.MaxTokens <= 0 {
		problems = append(problems, "llm.max_tokens must be positive")
	}
	if c.LLM.Retry.Enabled && c.LLM.Retry.MaxRetries <= 0 {
		problems = append(problems, "llm.retry.max_retries must be positive when retry is enabled")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		problems = append(problems, "llm.temperature must be between 0 and 2")
	}
	if needTelegram && c.Telegram.Token == "" {
		problems = append(problems, "telegram.token (or TELEGRAM_BOT_TOKEN) is required")
	}
	if c.Tools.Timeout.Std() <= 0 {
		problems = append(problems, "tools.timeout must be positive")
	}
	if c.Agent.MaxTurns < 3 {
		problems = append(problems, "agent.max_turns must be at least 3 (user turn, tool call and tool result)")
	}
	if c.Agent.MaxToolHops < 0 {
		problems = append(problems, "agent.max_tool_hops must not be negative")
	}
	switch c.Cache.Driver {
	case "", "none", "memory":
	case "redis":
		if c.Cache.RedisAddr == "" {
			problems = append(problems, "cache.redis_addr is required for the redis driver")
		}
	default:
		problems = append(problems, fmt.Sprintf("cache.driver %q is not supported", c.Cache.Driver))
	}
	if c.News.SummaryAttempts <= 0 {
		problems = append(problems, "news.summary_attempts must be positive")
	}

	if len(problems) > 0 {
		return xerrors.New(xerrors.CodeConfigInvalid, strings.Join(problems, "; "))
	}
	return nil
}
