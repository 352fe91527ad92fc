package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override: chrome.settle_delay
// is read from ORGSETUP_CHROME_SETTLE_DELAY.
const EnvPrefix = "ORGSETUP"

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Chrome   ChromeConfig   `mapstructure:"chrome"`
	Org      OrgConfig      `mapstructure:"org"`
	Run      RunConfig      `mapstructure:"run"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	NATS     NATSConfig     `mapstructure:"nats"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type ServerConfig struct {
	Port         string `mapstructure:"port"`
	Host         string `mapstructure:"host"`
	Mode         string `mapstructure:"mode"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	// StaleRunTimeout is how long a run may stay "running" in history before
	// the sweeper marks it failed.
	StaleRunTimeout time.Duration `mapstructure:"stale_run_timeout"`
}

type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"name"`
	Charset  string `mapstructure:"charset"`
}

type JWTConfig struct {
	Secret     string `mapstructure:"secret"`
	ExpireTime int    `mapstructure:"expire_time"`
}

type AdminConfig struct {
	Username     string `mapstructure:"username"`
	PasswordHash string `mapstructure:"password_hash"`
}

type ChromeConfig struct {
	Driver            string        `mapstructure:"driver"`
	ExecPath          string        `mapstructure:"exec_path"`
	Headless          bool          `mapstructure:"headless"`
	ViewportWidth     int           `mapstructure:"viewport_width"`
	ViewportHeight    int           `mapstructure:"viewport_height"`
	SettleDelay       time.Duration `mapstructure:"settle_delay"`
	FieldDelay        time.Duration `mapstructure:"field_delay"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout"`
	ActionTimeout     time.Duration `mapstructure:"action_timeout"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	MarkerTimeout     time.Duration `mapstructure:"marker_timeout"`
	BannerTimeout     time.Duration `mapstructure:"banner_timeout"`
	FrameNamePrefix   string        `mapstructure:"frame_name_prefix"`
	// PicklistEnabledText is the overview sentence that proves the picklists
	// are turned on. Orgs in another language render it translated.
	PicklistEnabledText string `mapstructure:"picklist_enabled_text"`
}

type OrgConfig struct {
	InstanceURL string `mapstructure:"instance_url"`
	AccessToken string `mapstructure:"access_token"`
	TargetOrg   string `mapstructure:"target_org"`
}

type RunConfig struct {
	ScreenshotDir string `mapstructure:"screenshot_dir"`
	Screenshots   bool   `mapstructure:"screenshots"`
	Strict        bool   `mapstructure:"strict"`
}

// ScheduleConfig holds the cron expressions of serve mode. An empty
// expression disables that schedule.
type ScheduleConfig struct {
	EmailDeliverability string `mapstructure:"email_deliverability"`
	StateCountry        string `mapstructure:"state_country"`
	CountryCSV          string `mapstructure:"country_csv"`
	StateCSV            string `mapstructure:"state_csv"`
}

type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Subject string `mapstructure:"subject"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 30)
	v.SetDefault("server.stale_run_timeout", 2*time.Hour)

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", "3306")
	v.SetDefault("database.username", "root")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "orgsetup")
	v.SetDefault("database.charset", "utf8mb4")

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expire_time", 24*3600)
	v.SetDefault("admin.username", "admin")
	v.SetDefault("admin.password_hash", "")

	v.SetDefault("chrome.driver", "chromedp")
	v.SetDefault("chrome.exec_path", "")
	v.SetDefault("chrome.headless", true)
	v.SetDefault("chrome.viewport_width", 1200)
	v.SetDefault("chrome.viewport_height", 1200)
	v.SetDefault("chrome.settle_delay", 10*time.Second)
	v.SetDefault("chrome.field_delay", 3*time.Second)
	v.SetDefault("chrome.navigation_timeout", 30*time.Second)
	v.SetDefault("chrome.action_timeout", 20*time.Second)
	v.SetDefault("chrome.poll_interval", 500*time.Millisecond)
	v.SetDefault("chrome.marker_timeout", 15*time.Second)
	v.SetDefault("chrome.banner_timeout", 15*time.Second)
	v.SetDefault("chrome.frame_name_prefix", "")
	v.SetDefault("chrome.picklist_enabled_text", "State and Country/Territory Picklists are enabled")

	v.SetDefault("org.instance_url", "")
	v.SetDefault("org.access_token", "")
	v.SetDefault("org.target_org", "")

	v.SetDefault("run.screenshot_dir", "./tmp")
	v.SetDefault("run.screenshots", false)
	v.SetDefault("run.strict", false)

	v.SetDefault("schedule.email_deliverability", "")
	v.SetDefault("schedule.state_country", "")
	v.SetDefault("schedule.country_csv", "")
	v.SetDefault("schedule.state_csv", "")

	v.SetDefault("nats.url", "")
	v.SetDefault("nats.subject", "orgsetup.runs.events")
	v.SetDefault("metrics.enabled", true)
}

// Options controls where LoadConfig looks.
type Options struct {
	// File is an explicit config file; empty searches ./orgsetup.yaml and
	// $HOME/.orgsetup.yaml and tolerates neither existing.
	File string
	// EnvFile is loaded into the process environment before env binding.
	// Existing variables win.
	EnvFile string
	// Flags are bound over everything else; a flag named "settle-delay" in
	// that set overrides chrome.settle_delay through FlagKeys.
	Flags    *pflag.FlagSet
	FlagKeys map[string]string
}

// LoadConfig layers defaults, the config file, .env, ORGSETUP_* environment
// variables and flags, in that order of increasing precedence.
func LoadConfig(opts Options) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	if opts.File != "" {
		v.SetConfigFile(opts.File)
	} else {
		v.SetConfigName("orgsetup")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.File != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.Flags != nil {
		for name, key := range opts.FlagKeys {
			if f := opts.Flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=%s&parseTime=True&loc=Local",
		c.Database.Username,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.Charset,
	)
}

// Addr is the listen address of serve mode.
func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}
