package engine

import (
	"fmt"
	"time"

	"assetid-workers/internal/assetid/hierarchy"
	"assetid-workers/internal/assetid/normalize"
	"assetid-workers/internal/common/config"
	"assetid-workers/internal/models"
)

type Config struct {
	// Levels that get an output column. Shallower levels are always computed.
	Levels              []models.Level
	Policy              models.Policy
	Separator           string
	Rules               normalize.Rules
	MaxSuffix           int
	MaxSequence         int
	PrefetchConcurrency int
	AbbreviationTimeout time.Duration
	AllowColumnReuse    bool
}

func DefaultConfig() *Config {
	return &Config{
		Levels:              []models.Level{models.LevelLocation, models.LevelSpace, models.LevelSubspace, models.LevelEquipment},
		Policy:              models.PolicyLenient,
		Separator:           "-",
		Rules:               normalize.DefaultRules(),
		MaxSuffix:           hierarchy.DefaultMaxSuffix,
		MaxSequence:         hierarchy.DefaultMaxSequence,
		PrefetchConcurrency: 4,
		AbbreviationTimeout: 5 * time.Second,
	}
}

func (c *Config) Validate() error {
	if len(c.Levels) == 0 {
		return fmt.Errorf("at least one level must be enabled")
	}
	for _, l := range c.Levels {
		if !l.Valid() {
			return fmt.Errorf("unknown level %q", l)
		}
	}
	if !c.Policy.Valid() {
		return fmt.Errorf("policy must be strict or lenient, got %q", c.Policy)
	}
	if c.Separator == "" {
		return fmt.Errorf("separator is required")
	}
	if c.MaxSuffix < 2 {
		return fmt.Errorf("max_suffix must be at least 2")
	}
	if c.MaxSequence < 1 {
		return fmt.Errorf("max_sequence must be positive")
	}
	if c.AbbreviationTimeout <= 0 {
		return fmt.Errorf("abbreviation_timeout must be positive")
	}
	return nil
}

// ConfigFromSettings builds an engine configuration from the generation config section. Zero values
// keep the defaults.
func ConfigFromSettings(g config.GenerationConfig) (*Config, error) {
	c := DefaultConfig()

	if len(g.Levels) > 0 {
		levels, err := models.ParseLevels(g.Levels)
		if err != nil {
			return nil, err
		}
		c.Levels = levels
	}
	if g.Policy != "" {
		c.Policy = models.Policy(g.Policy)
	}
	if g.Separator != "" {
		c.Separator = g.Separator
	}
	if g.Placeholder != "" {
		c.Rules.Placeholder = g.Placeholder
	}
	if g.EquipmentPlaceholder != "" {
		c.Rules.EquipmentPlaceholder = g.EquipmentPlaceholder
	}
	for name, n := range g.MaxLengths {
		level := models.Level(name)
		if !level.Valid() {
			return nil, fmt.Errorf("max_lengths: unknown level %q", name)
		}
		c.Rules.MaxLengths[level] = n
	}
	if g.MaxSuffix > 0 {
		c.MaxSuffix = g.MaxSuffix
	}
	if g.MaxSequence > 0 {
		c.MaxSequence = g.MaxSequence
	}
	if g.PrefetchConcurrency > 0 {
		c.PrefetchConcurrency = g.PrefetchConcurrency
	}
	if g.AbbreviationTimeout > 0 {
		c.AbbreviationTimeout = time.Duration(g.AbbreviationTimeout) * time.Millisecond
	}
	c.AllowColumnReuse = g.AllowColumnReuse

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}
