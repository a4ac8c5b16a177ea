package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"checkin_engine/internal/model"
)

// AccountsEnvKey 环境变量里的账号列表（JSON 数组），优先于配置文件。
const AccountsEnvKey = "CHECKIN_ACCOUNTS"

type Config struct {
	Storage   StorageConfig             `yaml:"storage"`
	Browser   BrowserConfig             `yaml:"browser"`
	Probe     ProbeConfig               `yaml:"probe"`
	Notify    NotifyConfig              `yaml:"notify"`
	Daemon    DaemonConfig              `yaml:"daemon"`
	Providers map[string]ProviderConfig `yaml:"providers"`
	Accounts  []model.Account           `yaml:"accounts"`
}

type StorageConfig struct {
	SQLitePath string `yaml:"sqlitePath"`
}

type BrowserConfig struct {
	Headless       *bool  `yaml:"headless"`
	UserAgent      string `yaml:"userAgent"`
	ViewportWidth  int    `yaml:"viewportWidth"`
	ViewportHeight int    `yaml:"viewportHeight"`
	// 所有等待都是显式命名的有界超时，按需在配置里调。
	NavTimeoutMs    int `yaml:"navTimeoutMs"`
	IdleTimeoutMs   int `yaml:"idleTimeoutMs"`
	SettleDelayMs   int `yaml:"settleDelayMs"`
	FindTimeoutMs   int `yaml:"findTimeoutMs"`
	ClickTimeoutMs  int `yaml:"clickTimeoutMs"`
	VerifyTimeoutMs int `yaml:"verifyTimeoutMs"`
	RescanDelayMs   int `yaml:"rescanDelayMs"`
}

func (c BrowserConfig) HeadlessMode() bool {
	if c.Headless == nil {
		return true
	}
	return *c.Headless
}

func (c BrowserConfig) NavTimeout() time.Duration {
	if c.NavTimeoutMs <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.NavTimeoutMs) * time.Millisecond
}

func (c BrowserConfig) IdleTimeout() time.Duration {
	if c.IdleTimeoutMs <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.IdleTimeoutMs) * time.Millisecond
}

// SettleDelay 导航后固定等待，吸收前端框架的延迟渲染（按钮经常是后插入的）。
func (c BrowserConfig) SettleDelay() time.Duration {
	if c.SettleDelayMs <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.SettleDelayMs) * time.Millisecond
}

func (c BrowserConfig) FindTimeout() time.Duration {
	if c.FindTimeoutMs <= 0 {
		return 2 * time.Second
	}
	return time.Duration(c.FindTimeoutMs) * time.Millisecond
}

func (c BrowserConfig) ClickTimeout() time.Duration {
	if c.ClickTimeoutMs <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.ClickTimeoutMs) * time.Millisecond
}

func (c BrowserConfig) VerifyTimeout() time.Duration {
	if c.VerifyTimeoutMs <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.VerifyTimeoutMs) * time.Millisecond
}

func (c BrowserConfig) RescanDelay() time.Duration {
	if c.RescanDelayMs <= 0 {
		return 3 * time.Second
	}
	return time.Duration(c.RescanDelayMs) * time.Millisecond
}

type ProbeConfig struct {
	TimeoutMs int           `yaml:"timeoutMs"`
	QPS       float64       `yaml:"qps"`
	Burst     int           `yaml:"burst"`
	UserAgent string        `yaml:"userAgent"`
	Retry     ProbeRetryCfg `yaml:"retry"`
}

type ProbeRetryCfg struct {
	Count     int `yaml:"count"`
	WaitMs    int `yaml:"waitMs"`
	MaxWaitMs int `yaml:"maxWaitMs"`
}

func (c ProbeConfig) Timeout() time.Duration {
	if c.TimeoutMs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

func (c ProbeRetryCfg) Wait() time.Duration {
	if c.WaitMs <= 0 {
		return 200 * time.Millisecond
	}
	return time.Duration(c.WaitMs) * time.Millisecond
}

func (c ProbeRetryCfg) MaxWait() time.Duration {
	if c.MaxWaitMs <= 0 {
		return 1200 * time.Millisecond
	}
	return time.Duration(c.MaxWaitMs) * time.Millisecond
}

type NotifyConfig struct {
	Title string      `yaml:"title"`
	Email EmailConfig `yaml:"email"`
}

type EmailConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Address  string `yaml:"address"`
	AuthCode string `yaml:"authCode"`
	// To 为空时发给自己。
	To string `yaml:"to"`
}

type DaemonConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CronSpec string `yaml:"cronSpec"`
}

type ProviderConfig struct {
	Domain          string `yaml:"domain"`
	ConsolePath     string `yaml:"consolePath"`
	UserInfoPath    string `yaml:"userInfoPath"`
	APIUserHeader   string `yaml:"apiUserHeader"`
	CheckinPathHint string `yaml:"checkinPathHint"`
}

func (c ProviderConfig) Provider() model.Provider {
	return model.Provider{
		Domain:          c.Domain,
		ConsolePath:     c.ConsolePath,
		UserInfoPath:    c.UserInfoPath,
		APIUserHeader:   c.APIUserHeader,
		CheckinPathHint: c.CheckinPathHint,
	}
}

// Load 读取配置文件；文件不存在时退回纯默认配置
// （账号可以完全来自 CHECKIN_ACCOUNTS 环境变量）。
func Load(path string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return Config{}, err
		}
	} else if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = "./data/checkin_engine.db"
	}
	if c.Browser.UserAgent == "" {
		c.Browser.UserAgent = DefaultDesktopUserAgent
	}
	if c.Browser.ViewportWidth <= 0 {
		c.Browser.ViewportWidth = 1920
	}
	if c.Browser.ViewportHeight <= 0 {
		c.Browser.ViewportHeight = 1080
	}
	if c.Probe.UserAgent == "" {
		c.Probe.UserAgent = DefaultDesktopUserAgent
	}
	if c.Probe.QPS <= 0 {
		c.Probe.QPS = 2
	}
	if c.Probe.Burst <= 0 {
		c.Probe.Burst = 1
	}
	if c.Probe.Retry.Count < 0 {
		c.Probe.Retry.Count = 0
	}
	if c.Notify.Title == "" {
		c.Notify.Title = "Check-in Report"
	}
	if c.Daemon.CronSpec == "" {
		c.Daemon.CronSpec = "0 9 * * *"
	}
	if len(c.Providers) == 0 {
		c.Providers = map[string]ProviderConfig{}
	}
	if _, ok := c.Providers["anyrouter"]; !ok {
		c.Providers["anyrouter"] = ProviderConfig{
			Domain:        "https://anyrouter.top",
			UserInfoPath:  "/api/user/self",
			APIUserHeader: "new-api-user",
		}
	}
}

func (c Config) validate() error {
	for name, p := range c.Providers {
		if strings.TrimSpace(p.Domain) == "" {
			return fmt.Errorf("provider %q: domain is required", name)
		}
		if strings.TrimSpace(p.UserInfoPath) == "" {
			return fmt.Errorf("provider %q: userInfoPath is required", name)
		}
	}
	if c.Notify.Email.Enabled && strings.TrimSpace(c.Notify.Email.Address) == "" {
		return errors.New("notify.email.address is required when email is enabled")
	}
	return nil
}

// ProviderMap 展开成运行期的 Provider 查找表。
func (c Config) ProviderMap() map[string]model.Provider {
	out := make(map[string]model.Provider, len(c.Providers))
	for name, p := range c.Providers {
		out[name] = p.Provider()
	}
	return out
}

// LoadAccountsFromEnv 从 CHECKIN_ACCOUNTS 读取账号列表（JSON 数组）。
// 未设置时返回 nil，不算错误。
func LoadAccountsFromEnv() ([]model.Account, error) {
	raw := strings.TrimSpace(os.Getenv(AccountsEnvKey))
	if raw == "" {
		return nil, nil
	}
	var accounts []model.Account
	if err := json.Unmarshal([]byte(raw), &accounts); err != nil {
		return nil, fmt.Errorf("%s: %w", AccountsEnvKey, err)
	}
	return accounts, nil
}

// DefaultDesktopUserAgent 桌面 Chrome UA：配合大视口，降低响应式布局把签到按钮藏起来的概率。
const DefaultDesktopUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
