// Package config provides Viper-based configuration loading for the loot server.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// LootMapFileName is the fixed name of the persisted loot map inside the profile directory.
const LootMapFileName = "lootmap.json"

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
	// StatsInterval is how often engine counters are logged; 0 disables.
	StatsInterval time.Duration `mapstructure:"stats_interval"`
}

// EngineConfig holds loot engine process settings. Game tunables (grid size,
// radii, respawn timers) live in the loot map file, not here.
type EngineConfig struct {
	// ProfileDir is the directory holding lootmap.json.
	ProfileDir string `mapstructure:"profile_dir"`
	// StartupGrace delays catalog construction until host registries are ready.
	StartupGrace time.Duration `mapstructure:"startup_grace"`
	// PlayerTick is the interval of the player proximity recomputation.
	PlayerTick time.Duration `mapstructure:"player_tick"`
	// TrickleDelay is the fixed delay between trickle spawn attempts.
	TrickleDelay time.Duration `mapstructure:"trickle_delay"`
	// TrickleJitterMin and TrickleJitterMax bound the random delay before a trickle starts.
	TrickleJitterMin time.Duration `mapstructure:"trickle_jitter_min"`
	TrickleJitterMax time.Duration `mapstructure:"trickle_jitter_max"`
	// DriverResolution is how often the real-time driver drains due tasks.
	DriverResolution time.Duration `mapstructure:"driver_resolution"`
	// SearchBaseDuration is scaled by the searched/unsearched ratios.
	SearchBaseDuration time.Duration `mapstructure:"search_base_duration"`
	// RulesScript is an optional Lua file defining loot_defaults; empty disables scripting.
	RulesScript string `mapstructure:"rules_script"`
	// ReservedSubstrings mark newly discovered resource ids as disabled by default.
	ReservedSubstrings []string `mapstructure:"reserved_substrings"`
	// ValidateSchema enables advisory JSON schema validation of the loot map on load.
	ValidateSchema bool `mapstructure:"validate_schema"`
	// Seed, when non-zero, makes loot rolls reproducible.
	Seed uint64 `mapstructure:"seed"`
}

// LootMapPath returns the profile-relative loot map location.
//
// Postcondition: Returns ProfileDir joined with LootMapFileName.
func (e EngineConfig) LootMapPath() string {
	return filepath.Join(e.ProfileDir, LootMapFileName)
}

// AuditConfig holds spawn audit log settings.
type AuditConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
	Prefix  string `mapstructure:"prefix"`
}

// HostConfig holds the simulated host content used by the dev server.
type HostConfig struct {
	// ItemsDir holds item definition YAML files.
	ItemsDir string `mapstructure:"items_dir"`
	// WorldFile holds crate and player placements.
	WorldFile string `mapstructure:"world_file"`
	// WanderTick is how often simulated players move and search crates.
	WanderTick time.Duration `mapstructure:"wander_tick"`
	// WanderStep bounds each simulated player's movement per tick.
	WanderStep int `mapstructure:"wander_step"`
	// SearchReach is how close a player must be to search a crate.
	SearchReach float64 `mapstructure:"search_reach"`
}

// Config is the top-level application configuration.
type Config struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Engine  EngineConfig  `mapstructure:"engine"`
	Audit   AuditConfig   `mapstructure:"audit"`
	Host    HostConfig    `mapstructure:"host"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateEngine(c.Engine); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateAudit(c.Audit); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateHost(c.Host); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	if l.StatsInterval < 0 {
		return errors.New("logging.stats_interval must not be negative")
	}
	return nil
}

func validateEngine(e EngineConfig) error {
	var errs []string
	if e.ProfileDir == "" {
		errs = append(errs, "engine.profile_dir must not be empty")
	}
	if e.StartupGrace < 0 {
		errs = append(errs, "engine.startup_grace must not be negative")
	}
	if e.PlayerTick <= 0 {
		errs = append(errs, fmt.Sprintf("engine.player_tick must be > 0, got %s", e.PlayerTick))
	}
	if e.TrickleDelay <= 0 {
		errs = append(errs, fmt.Sprintf("engine.trickle_delay must be > 0, got %s", e.TrickleDelay))
	}
	if e.TrickleJitterMin < 0 || e.TrickleJitterMax < e.TrickleJitterMin {
		errs = append(errs, "engine.trickle_jitter_min must be >= 0 and <= engine.trickle_jitter_max")
	}
	if e.DriverResolution <= 0 {
		errs = append(errs, fmt.Sprintf("engine.driver_resolution must be > 0, got %s", e.DriverResolution))
	}
	if e.SearchBaseDuration < 0 {
		errs = append(errs, "engine.search_base_duration must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateAudit(a AuditConfig) error {
	if !a.Enabled {
		return nil
	}
	if a.Dir == "" {
		return errors.New("audit.dir must not be empty when audit is enabled")
	}
	if a.Prefix == "" {
		return errors.New("audit.prefix must not be empty when audit is enabled")
	}
	return nil
}

func validateHost(h HostConfig) error {
	var errs []string
	if h.WanderTick <= 0 {
		errs = append(errs, fmt.Sprintf("host.wander_tick must be > 0, got %s", h.WanderTick))
	}
	if h.WanderStep < 0 {
		errs = append(errs, "host.wander_step must not be negative")
	}
	if h.SearchReach < 0 {
		errs = append(errs, "host.search_reach must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with LOOT_ prefix
	v.SetEnvPrefix("LOOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Defaults returns a Viper instance populated only with default values.
//
// Postcondition: LoadFromViper(Defaults()) succeeds.
func Defaults() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.stats_interval", "1m")

	v.SetDefault("engine.profile_dir", "profile")
	v.SetDefault("engine.startup_grace", "5s")
	v.SetDefault("engine.player_tick", "10s")
	v.SetDefault("engine.trickle_delay", "2s")
	v.SetDefault("engine.trickle_jitter_min", "100ms")
	v.SetDefault("engine.trickle_jitter_max", "5s")
	v.SetDefault("engine.driver_resolution", "50ms")
	v.SetDefault("engine.search_base_duration", "2s")
	v.SetDefault("engine.rules_script", "")
	v.SetDefault("engine.reserved_substrings", []string{"RearmingKit", "MedicalKit"})
	v.SetDefault("engine.validate_schema", true)
	v.SetDefault("engine.seed", 0)

	v.SetDefault("audit.enabled", false)
	v.SetDefault("audit.dir", "logs/spawns")
	v.SetDefault("audit.prefix", "spawns")

	v.SetDefault("host.items_dir", "content/items")
	v.SetDefault("host.world_file", "content/world.yaml")
	v.SetDefault("host.wander_tick", "3s")
	v.SetDefault("host.wander_step", 40)
	v.SetDefault("host.search_reach", 25.0)
}
