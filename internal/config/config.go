// Package config loads gauntlet's configuration from a YAML file, the
// environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"gauntlet/internal/runner"
	"gauntlet/internal/toolchain"
)

// EnvPrefix is prepended to every environment override, e.g.
// GAUNTLET_RUNNER_TIMEOUT.
const EnvPrefix = "GAUNTLET"

// Config is the decoded configuration.
type Config struct {
	Tournament TournamentConfig `mapstructure:"tournament"`
	Runner     RunnerConfig     `mapstructure:"runner"`
	Toolchain  ToolchainConfig  `mapstructure:"toolchain"`
	Store      StoreConfig      `mapstructure:"store"`
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
}

type TournamentConfig struct {
	Workers int    `mapstructure:"workers" validate:"min=1,max=1024"`
	Seed    uint64 `mapstructure:"seed"`
}

// RunnerConfig is the per-invocation budget and sandbox setup.
type RunnerConfig struct {
	Timeout        time.Duration `mapstructure:"timeout" validate:"gt=0"`
	MemoryLimitMB  int64         `mapstructure:"memory_limit_mb" validate:"min=0"`
	CPUSeconds     int           `mapstructure:"cpu_seconds" validate:"min=0"`
	MaxOutputBytes int           `mapstructure:"max_output_bytes" validate:"min=16"`
	SpawnRate      float64       `mapstructure:"spawn_rate" validate:"min=0"`
	SpawnBurst     int           `mapstructure:"spawn_burst" validate:"min=1"`
	IsolateNetwork bool          `mapstructure:"isolate_network"`

	// ConfineFilesystem gives each invocation a private root in which its
	// scratch dir is the only writable host path.
	ConfineFilesystem bool     `mapstructure:"confine_filesystem"`
	ReadOnlyPaths     []string `mapstructure:"readonly_paths" validate:"dive,required"`
	ScratchDir        string   `mapstructure:"scratch_dir"`
}

// Budget converts the config into a runner budget.
func (c RunnerConfig) Budget() runner.Budget {
	return runner.Budget{
		Timeout:        c.Timeout,
		MemoryBytes:    c.MemoryLimitMB << 20,
		CPUSeconds:     c.CPUSeconds,
		MaxOutputBytes: c.MaxOutputBytes,
	}
}

type ToolchainConfig struct {
	Python         string        `mapstructure:"python" validate:"required"`
	CCompiler      string        `mapstructure:"c_compiler" validate:"required"`
	CPPCompiler    string        `mapstructure:"cpp_compiler" validate:"required"`
	CompileTimeout time.Duration `mapstructure:"compile_timeout" validate:"gt=0"`
	CacheDir       string        `mapstructure:"cache_dir" validate:"required"`
}

// Tools returns the configured tool commands.
func (c ToolchainConfig) Tools() toolchain.Tools {
	return toolchain.Tools{Python: c.Python, CCompiler: c.CCompiler, CPPCompiler: c.CPPCompiler}
}

type StoreConfig struct {
	Path       string `mapstructure:"path" validate:"required_without=InMemory"`
	InMemory   bool   `mapstructure:"in_memory"`
	SyncWrites bool   `mapstructure:"sync_writes"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr" validate:"required,hostname_port"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=trace debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func setDefaults(v *viper.Viper) {
	tools := toolchain.DefaultTools()
	budget := runner.DefaultBudget()
	dataDir := defaultDataDir()

	v.SetDefault("tournament.workers", 4)
	v.SetDefault("tournament.seed", 0)

	v.SetDefault("runner.timeout", budget.Timeout)
	v.SetDefault("runner.memory_limit_mb", budget.MemoryBytes>>20)
	v.SetDefault("runner.cpu_seconds", budget.CPUSeconds)
	v.SetDefault("runner.max_output_bytes", budget.MaxOutputBytes)
	v.SetDefault("runner.spawn_rate", 0)
	v.SetDefault("runner.spawn_burst", 16)
	v.SetDefault("runner.isolate_network", true)
	v.SetDefault("runner.confine_filesystem", true)
	v.SetDefault("runner.readonly_paths", []string{})
	v.SetDefault("runner.scratch_dir", "")

	v.SetDefault("toolchain.python", tools.Python)
	v.SetDefault("toolchain.c_compiler", tools.CCompiler)
	v.SetDefault("toolchain.cpp_compiler", tools.CPPCompiler)
	v.SetDefault("toolchain.compile_timeout", 30*time.Second)
	v.SetDefault("toolchain.cache_dir", filepath.Join(dataDir, "cache"))

	v.SetDefault("store.path", filepath.Join(dataDir, "db"))
	v.SetDefault("store.in_memory", false)
	v.SetDefault("store.sync_writes", true)

	v.SetDefault("server.addr", "127.0.0.1:8080")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

func defaultDataDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "gauntlet")
	}
	return filepath.Join(os.TempDir(), "gauntlet")
}

// Load reads the config file at path (or searches the default locations when
// path is empty), applies GAUNTLET_* environment overrides and validates the
// result. A missing file is only an error when path was given explicitly.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("gauntlet")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "gauntlet"))
		}
		v.AddConfigPath("/etc/gauntlet")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every field constraint and reports all violations at
// once.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	errs := make([]error, len(verrs))
	for i, fe := range verrs {
		errs[i] = fmt.Errorf("config %s: failed %q (value %v)", configPath(fe.Namespace()), fe.Tag(), fe.Value())
	}
	return errors.Join(errs...)
}

// configPath turns "Config.Runner.MaxOutputBytes" into "Runner.MaxOutputBytes".
func configPath(ns string) string {
	_, rest, ok := strings.Cut(ns, ".")
	if !ok {
		return ns
	}
	return rest
}

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment.
// Variables already set are left alone. An empty path tries ".env" and
// ignores its absence.
func LoadEnvFile(path string) error {
	if path == "" {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}
