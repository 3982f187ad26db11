package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Supported browser families.
const (
	BrowserChromium = "chromium"
	BrowserFirefox  = "firefox"
	BrowserWebKit   = "webkit"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Browser  BrowserConfig  `mapstructure:"browser"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Tasks    TasksConfig    `mapstructure:"tasks"`
	Log      LogConfig      `mapstructure:"log"`
	Security SecurityConfig `mapstructure:"security"`
	Debug    DebugConfig    `mapstructure:"debug"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"` // runs are synchronous, keep this generous
	IdleTimeout  time.Duration `mapstructure:"idleTimeout"`
}

type BrowserConfig struct {
	Type            string        `mapstructure:"type"` // chromium, firefox, webkit
	Headless        bool          `mapstructure:"headless"`
	SlowMo          int           `mapstructure:"slowMo"` // milliseconds
	MaxSessions     int           `mapstructure:"maxSessions"`
	InstallDriver   bool          `mapstructure:"installDriver"`
	ShutdownTimeout time.Duration `mapstructure:"shutdownTimeout"`
}

type AuthConfig struct {
	StoragePath string `mapstructure:"storagePath"`
	TOTPSecret  string `mapstructure:"totpSecret"`
}

type TasksConfig struct {
	Directory string `mapstructure:"directory"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // console, json
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"maxSizeMB"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAgeDays"`
}

type SecurityConfig struct {
	AllowedOrigins []string `mapstructure:"allowedOrigins"`
	ApiKey         string   `mapstructure:"apiKey"`
}

type DebugConfig struct {
	SnapshotDir string `mapstructure:"snapshotDir"` // empty disables failure snapshots
}

// SetDefaults registers every default on v so a run works without a config file.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", "15s")
	v.SetDefault("server.writeTimeout", "10m")
	v.SetDefault("server.idleTimeout", "60s")

	v.SetDefault("browser.type", BrowserChromium)
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.slowMo", 100)
	v.SetDefault("browser.maxSessions", 4)
	v.SetDefault("browser.installDriver", false)
	v.SetDefault("browser.shutdownTimeout", "10s")

	v.SetDefault("auth.storagePath", "./auth/storage-state.json")
	v.SetDefault("auth.totpSecret", "")

	v.SetDefault("tasks.directory", "./tasks")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", "")
	v.SetDefault("log.maxSizeMB", 50)
	v.SetDefault("log.maxBackups", 3)
	v.SetDefault("log.maxAgeDays", 14)

	v.SetDefault("security.allowedOrigins", []string{"*"})
	v.SetDefault("security.apiKey", "") // set via TASKPILOT_SECURITY_APIKEY

	v.SetDefault("debug.snapshotDir", "")
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.taskpilot")
		v.AddConfigPath("/etc/taskpilot")
	}

	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("TASKPILOT")

	err := v.ReadInConfig()
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	err = v.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate normalizes the browser family and rejects values the runner cannot honour.
func (c *Config) Validate() error {
	c.Browser.Type = strings.ToLower(strings.TrimSpace(c.Browser.Type))
	switch c.Browser.Type {
	case "":
		c.Browser.Type = BrowserChromium
	case BrowserChromium, BrowserFirefox, BrowserWebKit:
	default:
		return fmt.Errorf("unsupported browser type %q (want chromium, firefox or webkit)", c.Browser.Type)
	}
	if c.Browser.SlowMo < 0 {
		return fmt.Errorf("browser.slowMo must not be negative, got %d", c.Browser.SlowMo)
	}
	if c.Browser.MaxSessions <= 0 {
		return fmt.Errorf("browser.maxSessions must be positive, got %d", c.Browser.MaxSessions)
	}
	if c.Auth.StoragePath == "" {
		return fmt.Errorf("auth.storagePath must be set")
	}
	return nil
}
