// Package config loads cuenv's runtime configuration with a clear
// precedence order (env > config file > default) into a typed
// struct rather than scattered os.Getenv calls, with an hclog.Logger built
// from the resolved log level alongside it. spf13/viper owns that
// precedence chain; mitchellh/mapstructure decodes the merged values into
// Config. Command-line flags are not part of the chain: subcommands apply
// their own flag values after Load.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/mapstructure"
	"github.com/muhammadmuzzammil1998/jsonc"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix viper uses when binding CUENV_* environment
// variables.
const EnvPrefix = "CUENV"

// Config is cuenv's resolved runtime configuration: cache/lock locations,
// secret-fingerprint salts, concurrency defaults, and logging.
type Config struct {
	CacheDir    string `mapstructure:"cache_dir"`
	LockDir     string `mapstructure:"lock_dir"`
	ReportDir   string `mapstructure:"report_dir"`
	Concurrency int    `mapstructure:"concurrency"`
	LogLevel    string `mapstructure:"log_level"`

	SecretSalt     string `mapstructure:"secret_salt"`
	SecretSaltPrev string `mapstructure:"secret_salt_prev"`

	StaleLockThreshold time.Duration `mapstructure:"stale_lock_threshold"`
	AcquireTimeout     time.Duration `mapstructure:"acquire_timeout"`
}

// defaults fills in every field Load doesn't require the caller to set,
// rooted at projectDir for the filesystem-local fallbacks.
func defaults(projectDir string) map[string]any {
	xdgCache, err := xdg.CacheFile(filepath.Join("cuenv", "cache"))
	if err != nil {
		xdgCache = filepath.Join(projectDir, ".cuenv", "cache")
	}
	return map[string]any{
		"cache_dir":            xdgCache,
		"lock_dir":             filepath.Join(projectDir, ".cuenv", "locks"),
		"report_dir":           filepath.Join(projectDir, ".cuenv", "reports"),
		"concurrency":          10,
		"log_level":            "info",
		"stale_lock_threshold": 600 * time.Second,
		"acquire_timeout":      300 * time.Second,
	}
}

// Load resolves configuration for projectDir: defaults, then an optional
// ".cuenv/config.json" (JSONC, comments allowed) file at the project root,
// then CUENV_*-prefixed environment variables, highest precedence last.
func Load(projectDir string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults(projectDir) {
		v.SetDefault(key, value)
	}

	// config.json tolerates "//" and "/* */" comments (a JSONC file, not
	// strict JSON), so it's stripped through jsonc before viper parses it.
	configPath := filepath.Join(projectDir, ".cuenv", "config.json")
	if raw, err := os.ReadFile(configPath); err == nil {
		v.SetConfigType("json")
		if err := v.ReadConfig(bytes.NewReader(jsonc.ToJSON(raw))); err != nil {
			return nil, fmt.Errorf("reading %s: %w", configPath, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading %s: %w", configPath, err)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	for key := range defaults(projectDir) {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}
	if err := v.BindEnv("secret_salt", "CUENV_SECRET_SALT"); err != nil {
		return nil, err
	}
	if err := v.BindEnv("secret_salt_prev", "CUENV_SECRET_SALT_PREV"); err != nil {
		return nil, err
	}

	var cfg Config
	decodeHook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
	)
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHook)); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return &cfg, nil
}

// Logger builds the hclog.Logger this configuration's LogLevel describes,
// a single named root logger derived from resolved config rather than a
// package-global.
func (c *Config) Logger(name string) hclog.Logger {
	level := hclog.LevelFromString(c.LogLevel)
	if level == hclog.NoLevel {
		level = hclog.Info
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:  name,
		Level: level,
	})
}
