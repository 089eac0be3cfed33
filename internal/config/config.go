package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Multipliers holds the per-source additive bonus magnitudes. These are
// tuning constants: each active source contributes value on top of the 1.0
// base, they do not compound.
type Multipliers struct {
	StreakBase      float64 `yaml:"streak_base" env:"STREAK_BASE"`
	AchievementBase float64 `yaml:"achievement_base" env:"ACHIEVEMENT_BASE"`
	SkillMastery    float64 `yaml:"skill_mastery" env:"SKILL_MASTERY"`
	SeasonalEvent   float64 `yaml:"seasonal_event" env:"SEASONAL_EVENT"`
}

// Season declares an optional seasonal event window. While now is inside
// the window the seasonal multiplier source is published.
type Season struct {
	Name   string    `yaml:"name"`
	Starts time.Time `yaml:"starts"`
	Ends   time.Time `yaml:"ends"`
}

type Config struct {
	// PassiveXPBase is the idle accumulator rate in XP per hour before
	// multipliers.
	PassiveXPBase float64 `yaml:"passive_xp_base" env:"PASSIVE_XP_BASE"`
	// PassiveCapacity bounds how much uncollected XP the accumulator holds.
	PassiveCapacity float64 `yaml:"passive_capacity" env:"PASSIVE_CAPACITY"`
	// CompletionXPBase is the XP granted per activity completion before
	// multipliers.
	CompletionXPBase float64 `yaml:"completion_xp_base" env:"COMPLETION_XP_BASE"`
	// MaxOfflineHours caps how much elapsed time a resume may replay.
	MaxOfflineHours float64 `yaml:"max_offline_hours" env:"MAX_OFFLINE_HOURS"`
	// SyncInterval is the foreground tick period.
	SyncInterval time.Duration `yaml:"sync_interval" env:"SYNC_INTERVAL"`
	// LevelXPMultiplier is the curve steepness coefficient.
	LevelXPMultiplier float64 `yaml:"level_xp_multiplier" env:"LEVEL_XP_MULTIPLIER"`

	Multipliers Multipliers `yaml:"multipliers" envPrefix:"MULTIPLIERS_"`
	Season      *Season     `yaml:"season,omitempty"`
}

func Default() Config {
	return Config{
		PassiveXPBase:     10,
		PassiveCapacity:   500,
		CompletionXPBase:  50,
		MaxOfflineHours:   72,
		SyncInterval:      30 * time.Second,
		LevelXPMultiplier: 500,
		Multipliers: Multipliers{
			StreakBase:      0.02,
			AchievementBase: 0.05,
			SkillMastery:    0.10,
			SeasonalEvent:   0.25,
		},
	}
}

// DefaultPath returns ~/.lifeforge.yaml.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(homeDir, ".lifeforge.yaml"), nil
}

// Load reads the YAML config at path on top of defaults, then applies
// LIFEFORGE_* environment overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "LIFEFORGE_"}); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.PassiveXPBase < 0 {
		return fmt.Errorf("passive_xp_base must be >= 0, got %v", c.PassiveXPBase)
	}
	if c.PassiveCapacity < 0 {
		return fmt.Errorf("passive_capacity must be >= 0, got %v", c.PassiveCapacity)
	}
	if c.MaxOfflineHours <= 0 {
		return fmt.Errorf("max_offline_hours must be > 0, got %v", c.MaxOfflineHours)
	}
	if c.SyncInterval <= 0 {
		return fmt.Errorf("sync_interval must be > 0, got %v", c.SyncInterval)
	}
	if c.LevelXPMultiplier <= 0 {
		return fmt.Errorf("level_xp_multiplier must be > 0, got %v", c.LevelXPMultiplier)
	}
	return nil
}
