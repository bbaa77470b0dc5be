package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	Secret     string        `mapstructure:"secret"`
	LogLevel   string        `mapstructure:"log_level"`

	GracePeriod     time.Duration `mapstructure:"grace_period"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	RoomTTL         time.Duration `mapstructure:"room_ttl"`
	TemplatesFile   string        `mapstructure:"templates_file"`

	CommandRate  float64 `mapstructure:"command_rate"`
	CommandBurst int     `mapstructure:"command_burst"`
	SendBuffer   int     `mapstructure:"send_buffer"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("secret", "estimate-dev-secret")
	v.SetDefault("log_level", "info")
	v.SetDefault("grace_period", "10s")
	v.SetDefault("cleanup_interval", "1h")
	v.SetDefault("room_ttl", "2h")
	v.SetDefault("templates_file", "")
	v.SetDefault("command_rate", 20)
	v.SetDefault("command_burst", 40)
	v.SetDefault("send_buffer", 64)
}

// Flags declares the command line overrides. Unset flags leave the file
// and environment values alone.
func Flags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("estimate", pflag.ContinueOnError)
	fs.String("config", "", "config file (default config/config.<CONFIG_ENV>.yaml)")
	fs.String("mode", "release", "gin mode: debug or release")
	fs.Int("port", 8080, "HTTP listen port")
	fs.String("static-path", "./web", "directory with the web UI")
	fs.String("log-level", "info", "zerolog level")
	fs.Duration("grace-period", 10*time.Second, "how long a room waits for its admin to reconnect")
	fs.String("templates-file", "", "YAML file replacing the built-in templates")
	return fs
}

// Load reads config/config.<CONFIG_ENV>.yaml, then ESTIMATE_* environment
// variables, then flags set in fs, each overriding the previous.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvPrefix("ESTIMATE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	fileName := ""
	if fs != nil {
		bindFlags(v, fs)
		fileName, _ = fs.GetString("config")
	}
	if fileName == "" {
		env := os.Getenv("CONFIG_ENV")
		if env == "" {
			env = "dev"
		}
		fileName = fmt.Sprintf("config/config.%s.yaml", env)
	}
	v.SetConfigFile(fileName)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Str("static", cfg.StaticPath).Msg("config ready")
	return &cfg, nil
}

// bindFlags maps dashed flag names onto the underscored config keys.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) {
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Name == "config" {
			return
		}
		key := strings.ReplaceAll(f.Name, "-", "_")
		_ = v.BindPFlag(key, f)
	})
}

func (c *Config) validate() error {
	switch {
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("invalid port %d", c.Port)
	case c.GracePeriod <= 0:
		return fmt.Errorf("grace_period must be positive, got %s", c.GracePeriod)
	case c.CleanupInterval <= 0:
		return fmt.Errorf("cleanup_interval must be positive, got %s", c.CleanupInterval)
	case c.RoomTTL <= 0:
		return fmt.Errorf("room_ttl must be positive, got %s", c.RoomTTL)
	}
	return nil
}
