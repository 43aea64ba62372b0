/*
Package config loads runtime configuration from the environment.

PURPOSE:
  One struct holds everything the server needs: listen address, database
  path, token signing secret, CORS origins, campaign dates, and the
  reconciliation schedule. Values come from environment variables with a
  LOYALTY_ prefix; a local .env file is loaded first when present.

CAMPAIGN OVERRIDES:
  The promotional bonus and cutoff dates default to the current program
  campaign (see loyalty.DefaultCampaign) and can be overridden per
  deployment without a rebuild.

USAGE:
  cfg, err := config.Load()
*/
package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/warp/loyalty-engine/loyalty"
)

type Config struct {
	Addr         string        `envconfig:"ADDR" default:":8080"`
	DatabasePath string        `envconfig:"DB_PATH" default:"./data/loyalty.db"`
	JWTSecret    string        `envconfig:"JWT_SECRET" default:"dev-secret-change-me"`
	TokenTTL     time.Duration `envconfig:"TOKEN_TTL" default:"24h"`
	CORSOrigins  []string      `envconfig:"CORS_ORIGINS" default:"*"`
	LogLevel     string        `envconfig:"LOG_LEVEL" default:"info"`

	// Campaign overrides. Dates are YYYY-MM-DD.
	PromoBonus       int64  `envconfig:"PROMO_BONUS" default:"200"`
	PromoCutoff      string `envconfig:"PROMO_CUTOFF" default:"2024-12-18"`
	SubmissionCutoff string `envconfig:"SUBMISSION_CUTOFF" default:"2024-12-14"`

	// ReconcileSpec is a cron expression; empty disables the job.
	ReconcileSpec string `envconfig:"RECONCILE_SPEC" default:"0 3 * * *"`
}

// Load reads .env (if present) and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("LOYALTY", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return &cfg, nil
}

// Campaign builds the campaign rules from the configured overrides,
// falling back to the defaults on unparsable dates.
func (c *Config) Campaign() loyalty.Campaign {
	campaign := loyalty.DefaultCampaign()

	campaign.PromoBonus = loyalty.NewPoints(c.PromoBonus)
	if t, err := time.Parse("2006-01-02", c.PromoCutoff); err == nil {
		campaign.PromoCutoff = t
	}
	if t, err := time.Parse("2006-01-02", c.SubmissionCutoff); err == nil {
		campaign.SubmissionCutoff = t
	}
	return campaign
}
