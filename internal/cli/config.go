package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"
	"github.com/tailscale/hujson"
)

// Config holds all CLI configuration options.
type Config struct {
	// From config files (serialized)
	CacheDir         string `json:"cache_dir"                   validate:"required"`
	LogLevel         string `json:"log_level,omitempty"         validate:"omitempty,oneof=debug info warn error"`
	MinFreeBytes     uint64 `json:"min_free_bytes,omitempty"`
	FlushConcurrency int    `json:"flush_concurrency,omitempty" validate:"gte=0,lte=1024"`
	LockDir          *bool  `json:"lock_dir,omitempty"`

	// Resolved values (computed, not serialized)
	EffectiveCwd string `json:"-"` // Absolute working directory (from -C flag or os.Getwd)
	CacheDirAbs  string `json:"-"` // Absolute path to cache directory

	// Sources tracks which config files were loaded (for diagnostics)
	Sources ConfigSources `json:"-"`
}

// ConfigSources tracks which config files were loaded.
type ConfigSources struct {
	Global  string // Path to global config if loaded, empty otherwise
	Project string // Path to project config if loaded, empty otherwise
	DotEnv  string // Path to .env file if loaded, empty otherwise
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		CacheDir: ".fcache",
		LogLevel: "warn",
	}
}

// ConfigFileName is the default project config file name.
const ConfigFileName = ".fcache.json"

// EnvCacheDir overrides the cache directory from config files.
const EnvCacheDir = "FCACHE_DIR"

// LockDirEnabled reports whether the cache directory lock is taken. It
// defaults to true.
func (c Config) LockDirEnabled() bool {
	return c.LockDir == nil || *c.LockDir
}

// getGlobalConfigPath returns the path to the global config file.
// Uses $XDG_CONFIG_HOME/fcache/config.json if set, otherwise ~/.config/fcache/config.json.
// Returns empty string if home directory cannot be determined.
func getGlobalConfigPath(env map[string]string) string {
	if xdgConfig := env["XDG_CONFIG_HOME"]; xdgConfig != "" {
		return filepath.Join(xdgConfig, "fcache", "config.json")
	}

	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".config", "fcache", "config.json")
	}

	return ""
}

// LoadConfigInput holds the inputs for LoadConfig.
type LoadConfigInput struct {
	WorkDirOverride  string            // -C/--cwd flag value; if empty, os.Getwd() is used
	ConfigPath       string            // -c/--config flag value
	CacheDirOverride string            // -d/--cache-dir flag value; empty means no override
	LogLevelOverride string            // --log-level flag value; empty means no override
	Env              map[string]string // environment variables
}

// LoadConfig loads configuration with the following precedence (highest wins):
// 1. Defaults
// 2. Global user config (~/.config/fcache/config.json or $XDG_CONFIG_HOME/fcache/config.json)
// 3. Project config file at default location (.fcache.json, if exists)
// 4. Explicit config file via configPath (replaces 3)
// 5. FCACHE_DIR from the environment
// 6. CLI overrides.
//
// All paths in the returned Config are resolved to absolute paths.
func LoadConfig(input LoadConfigInput) (Config, error) {
	workDir, err := resolveWorkDir(input.WorkDirOverride)
	if err != nil {
		return Config{}, err
	}

	cfg := DefaultConfig()

	globalCfg, globalPath, err := loadGlobalConfig(input.Env)
	if err != nil {
		return Config{}, err
	}

	cfg.Sources.Global = globalPath
	cfg = mergeConfig(cfg, globalCfg)

	projectCfg, projectPath, err := loadProjectConfig(workDir, input.ConfigPath)
	if err != nil {
		return Config{}, err
	}

	cfg.Sources.Project = projectPath
	cfg = mergeConfig(cfg, projectCfg)

	if dir := input.Env[EnvCacheDir]; dir != "" {
		cfg.CacheDir = dir
	}

	if input.CacheDirOverride != "" {
		cfg.CacheDir = input.CacheDirOverride
	}

	if input.LogLevelOverride != "" {
		cfg.LogLevel = input.LogLevelOverride
	}

	validateErr := validateConfig(cfg)
	if validateErr != nil {
		return Config{}, validateErr
	}

	cfg.EffectiveCwd = workDir

	if filepath.IsAbs(cfg.CacheDir) {
		cfg.CacheDirAbs = filepath.Clean(cfg.CacheDir)
	} else {
		cfg.CacheDirAbs = filepath.Join(workDir, cfg.CacheDir)
	}

	return cfg, nil
}

func resolveWorkDir(override string) (string, error) {
	workDir := override
	if workDir == "" {
		var err error

		workDir, err = os.Getwd()
		if err != nil {
			return "", fmt.Errorf("cannot get working directory: %w", err)
		}
	}

	abs, err := filepath.Abs(workDir)
	if err != nil {
		return "", fmt.Errorf("cannot resolve working directory: %w", err)
	}

	return abs, nil
}

// loadGlobalConfig loads the global user config file if it exists.
// Returns the config, the path if loaded, and any error.
func loadGlobalConfig(env map[string]string) (Config, string, error) {
	globalCfgPath := getGlobalConfigPath(env)
	if globalCfgPath == "" {
		return Config{}, "", nil
	}

	globalCfg, explicitEmpty, loaded, err := loadConfigFile(globalCfgPath, false)
	if err != nil {
		return Config{}, "", err
	}

	if !loaded {
		return Config{}, "", nil
	}

	if explicitEmpty {
		return Config{}, "", fmt.Errorf("%w %s: %w", ErrConfigInvalid, globalCfgPath, ErrCacheDirEmpty)
	}

	return globalCfg, globalCfgPath, nil
}

// loadProjectConfig loads the project config file (.fcache.json) or an explicit config file.
// Returns the config, the path if loaded, and any error.
func loadProjectConfig(workDir, configPath string) (Config, string, error) {
	var cfgFile string

	var mustExist bool

	if configPath != "" {
		cfgFile = configPath
		if !filepath.IsAbs(cfgFile) {
			cfgFile = filepath.Join(workDir, cfgFile)
		}

		mustExist = true

		_, statErr := os.Stat(cfgFile)
		if statErr != nil {
			return Config{}, "", fmt.Errorf("%w: %s", ErrConfigFileNotFound, configPath)
		}
	} else {
		cfgFile = filepath.Join(workDir, ConfigFileName)
		mustExist = false
	}

	fileCfg, explicitEmpty, loaded, err := loadConfigFile(cfgFile, mustExist)
	if err != nil {
		return Config{}, "", err
	}

	if !loaded {
		return Config{}, "", nil
	}

	if explicitEmpty {
		return Config{}, "", fmt.Errorf("%w %s: %w", ErrConfigInvalid, cfgFile, ErrCacheDirEmpty)
	}

	return fileCfg, cfgFile, nil
}

// loadConfigFile loads a config file. If mustExist is false, missing files return zero config.
// Returns the config, whether cache_dir was explicitly empty, whether the file was loaded, and any error.
func loadConfigFile(path string, mustExist bool) (Config, bool, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !mustExist {
			return Config{}, false, false, nil
		}

		if mustExist {
			return Config{}, false, false, fmt.Errorf("%w: %s", ErrConfigFileRead, path)
		}

		return Config{}, false, false, nil
	}

	cfg, explicitEmpty, parseErr := parseConfig(data)
	if parseErr != nil {
		return Config{}, false, false, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, parseErr)
	}

	return cfg, explicitEmpty, true, nil
}

func parseConfig(data []byte) (Config, bool, error) {
	// Standardize JSONC to JSON
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, false, fmt.Errorf("invalid JSONC: %w", err)
	}

	var cfg Config

	unmarshalErr := sonic.ConfigStd.Unmarshal(standardized, &cfg)
	if unmarshalErr != nil {
		return Config{}, false, fmt.Errorf("invalid JSON: %w", unmarshalErr)
	}

	var raw map[string]any

	_ = sonic.ConfigStd.Unmarshal(standardized, &raw)

	explicitEmpty := false

	if val, exists := raw["cache_dir"]; exists {
		if str, ok := val.(string); ok && str == "" {
			explicitEmpty = true
		}
	}

	return cfg, explicitEmpty, nil
}

func mergeConfig(base, overlay Config) Config {
	if overlay.CacheDir != "" {
		base.CacheDir = overlay.CacheDir
	}

	if overlay.LogLevel != "" {
		base.LogLevel = overlay.LogLevel
	}

	if overlay.MinFreeBytes != 0 {
		base.MinFreeBytes = overlay.MinFreeBytes
	}

	if overlay.FlushConcurrency != 0 {
		base.FlushConcurrency = overlay.FlushConcurrency
	}

	if overlay.LockDir != nil {
		base.LockDir = overlay.LockDir
	}

	return base
}

var configValidator = validator.New(validator.WithRequiredStructEnabled())

func validateConfig(cfg Config) error {
	if cfg.CacheDir == "" {
		return ErrCacheDirEmpty
	}

	err := configValidator.Struct(cfg)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfigInvalid, err)
	}

	return nil
}

// FormatConfig renders cfg as key=value lines.
func FormatConfig(cfg Config) []string {
	lines := []string{
		"effective_cwd=" + cfg.EffectiveCwd,
		"cache_dir=" + cfg.CacheDirAbs,
		"log_level=" + cfg.LogLevel,
		"lock_dir=" + strconv.FormatBool(cfg.LockDirEnabled()),
	}

	if cfg.MinFreeBytes != 0 {
		lines = append(lines, "min_free_bytes="+strconv.FormatUint(cfg.MinFreeBytes, 10))
	}

	if cfg.FlushConcurrency != 0 {
		lines = append(lines, "flush_concurrency="+strconv.Itoa(cfg.FlushConcurrency))
	}

	return lines
}
