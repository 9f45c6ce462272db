package rules

// Config is the free-form per-rule configuration block. Typed accessors
// fall back to the rule's built-in default when a key is absent or of the
// wrong shape, so a partial config never disables a threshold silently.
type Config map[string]any

// Float returns the configured float for key, or def.
func (c Config) Float(key string, def float64) float64 {
	switch v := c[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return def
}

// Int returns the configured integer for key, or def.
func (c Config) Int(key string, def int) int {
	switch v := c[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

// Bool returns the configured boolean for key, or def.
func (c Config) Bool(key string, def bool) bool {
	if v, ok := c[key].(bool); ok {
		return v
	}
	return def
}

// Sub returns a nested config block for key, empty when absent.
func (c Config) Sub(key string) Config {
	switch v := c[key].(type) {
	case Config:
		return v
	case map[string]any:
		return Config(v)
	}
	return Config{}
}

// EngineConfig gates rule execution. The zero value runs every registered
// rule with its built-in defaults.
type EngineConfig struct {
	// Disabled switches the whole engine off.
	Disabled bool `yaml:"disabled"`
	// Rules holds per-rule blocks keyed by rule key. A rule block may set
	// "enabled: false" plus any rule-specific thresholds.
	Rules map[string]Config `yaml:"rules"`
}

func (ec EngineConfig) ruleConfig(key string) Config {
	if cfg, ok := ec.Rules[key]; ok {
		return cfg
	}
	return Config{}
}

func (ec EngineConfig) ruleEnabled(key string) bool {
	if ec.Disabled {
		return false
	}
	return ec.ruleConfig(key).Bool("enabled", true)
}
