package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Email       Email       `yaml:"email"`
	AI          AI          `yaml:"ai"`
	Runtime     Runtime     `yaml:"runtime"`
	Aggregation Aggregation `yaml:"aggregation"`
	Notification Notification `yaml:"notification"`
	Feedback    Feedback    `yaml:"feedback"`
	Concurrency Concurrency `yaml:"concurrency"`
	Server      Server      `yaml:"server"`
	Store       Store       `yaml:"store"`
	Output      Output      `yaml:"output"`
}

type Email struct {
	IMAPServer   string     `yaml:"imap_server"`
	IMAPPort     int        `yaml:"imap_port"`
	EmailAddress string     `yaml:"email_address"`
	AppPassword  string     `yaml:"app_password"`
	Rules        EmailRules `yaml:"rules"`
}

type EmailRules struct {
	Sender      string `yaml:"sender"`
	VendorDomain string `yaml:"vendor_domain"`
}

type AI struct {
	APIURL      string  `yaml:"api_url"`
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

type Runtime struct {
	CheckInterval int    `yaml:"check_interval"`
	LogLevel      string `yaml:"log_level"`
	RuleCompileInterval int `yaml:"rule_compile_interval"`
}

type Aggregation struct {
	WindowHours    int      `yaml:"window_hours"`
	TrackingParams []string `yaml:"tracking_params"`
	BodyByteCap    int      `yaml:"body_byte_cap"`
}

type Notification struct {
	Webhooks          []string `yaml:"webhooks"`
	SuppressKeywords  []string `yaml:"suppress_keywords"`
}

type Feedback struct {
	LinkBaseURL   string `yaml:"link_base_url"`
	LinkSecret    string `yaml:"link_secret"`
	LinkTTLHours  int    `yaml:"link_ttl_hours"`
	RuleThreshold int    `yaml:"rule_threshold"`
	MaxFewShot    int    `yaml:"max_few_shot"`
}

type Concurrency struct {
	PMail int `yaml:"p_mail"`
	PURL  int `yaml:"p_url"`
	PLLM  int `yaml:"p_llm"`
	PAPI  int `yaml:"p_api"` // expected concurrent API request handlers, used to size the store connection pool
}

type Server struct {
	Port int `yaml:"port"`
}

type Store struct {
	DSN string `yaml:"dsn"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

// ConfigDir returns the XDG config directory for sentinel.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "sentinel")
}

// DataDir returns the XDG data directory for sentinel.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "sentinel")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/sentinel/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'sentinel init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Email: Email{
			IMAPServer: "imap.qq.com",
			IMAPPort:   993,
			Rules:      EmailRules{Sender: "", VendorDomain: ""},
		},
		AI: AI{
			APIURL:      "https://api.openai.com/v1/chat/completions",
			Model:       "gpt-4o-mini",
			MaxTokens:   800,
			Temperature: 0.2,
		},
		Runtime: Runtime{
			CheckInterval:       300,
			LogLevel:            "INFO",
			RuleCompileInterval: 1800,
		},
		Aggregation: Aggregation{
			WindowHours:    72,
			TrackingParams: []string{"utm_source", "utm_medium", "utm_campaign", "utm_content", "utm_term", "spm", "from"},
			BodyByteCap:    20000,
		},
		Feedback: Feedback{
			LinkTTLHours:  72,
			RuleThreshold: 3,
			MaxFewShot:    5,
		},
		Concurrency: Concurrency{
			PMail: 4,
			PURL:  4,
			PLLM:  4,
			PAPI:  8,
		},
		Server: Server{Port: 8000},
		Store:  Store{DSN: "sentinel:sentinel@tcp(127.0.0.1:3306)/sentinel?parseTime=true&charset=utf8mb4"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
