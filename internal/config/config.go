package config

import "github.com/caarlos0/env/v11"

// Config is the process-wide configuration, parsed from the
// environment. The administrator identity and the membership collection
// classes are fixed here at bootstrap.
type Config struct {
	Port         string `env:"PORT" envDefault:"8080"`
	Env          string `env:"ENV" envDefault:"development"`
	Debug        bool   `env:"DEBUG"`
	DatabasePath string `env:"DATABASE_PATH" envDefault:"escrow.db"`
	JWTSecret    string `env:"JWT_SECRET" envDefault:"escrow-secret-key"`

	AdminAccount   string `env:"ADMIN_ACCOUNT" envDefault:"acct-admin"`
	AdminAPIKey    string `env:"ADMIN_API_KEY" envDefault:"admin-api-key"`
	AdminAPISecret string `env:"ADMIN_API_SECRET" envDefault:"admin-api-secret"`

	EliteCollection   string `env:"ELITE_COLLECTION" envDefault:"membership:elite"`
	RegularCollection string `env:"REGULAR_COLLECTION" envDefault:"membership:regular"`

	EliteFeeRate     uint64 `env:"ELITE_FEE_RATE" envDefault:"1"`
	RegularFeeRate   uint64 `env:"REGULAR_FEE_RATE" envDefault:"2"`
	NonHolderFeeRate uint64 `env:"NON_HOLDER_FEE_RATE" envDefault:"3"`
}

// Load parses the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
