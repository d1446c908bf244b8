package extension

// Config holds the Feeledger extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.feeledger" or "feeledger" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// DefaultCurrency is the ISO currency code assumed for fee records that
	// arrive without one (default: "ugx").
	DefaultCurrency string `json:"default_currency" mapstructure:"default_currency" yaml:"default_currency"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DefaultCurrency: "ugx",
	}
}
