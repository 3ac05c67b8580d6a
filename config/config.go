package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	// EnvGithubToken is the environment variable name for the GitHub API token
	EnvGithubToken = "ASSIGNBOT_GITHUB_TOKEN"

	// EnvAPIKey is an additional API key accepted by the public API
	EnvAPIKey = "ASSIGNBOT_API_KEY"
)

// LabelRule restricts which roles may start tasks carrying a given label.
type LabelRule struct {
	Name  string   `json:"name"`
	Roles []string `json:"roles"`
}

// RateLimits configures the public API request quotas per minute, keyed by
// (client, user, mode).
type RateLimits struct {
	ValidatePerMinute int `json:"validate_per_minute"`
	ExecutePerMinute  int `json:"execute_per_minute"`
}

// Config represents the plugin configuration
type Config struct {
	// GitHub API token for authentication (can be set via ASSIGNBOT_GITHUB_TOKEN env var)
	GitHubToken string `json:"github_token"`

	// Login of the bot account posting comments and performing assignments
	BotLogin string `json:"bot_login"`

	// Organization the plugin operates in
	Org string `json:"org"`

	// Scope for counting a user's assigned issues: "repo" or "org"
	TaskAccessScope string `json:"task_access_scope"`

	// Maximum concurrent tasks per role; a role absent from the map has no
	// configured limit and falls back conservatively
	RoleLimits map[string]int `json:"role_limits"`

	// Maximum task price in USD per role; a negative ceiling puts the role
	// into preservation mode (hard block)
	UsdPriceMax map[string]float64 `json:"usd_price_max"`

	// Minimum GitHub account age in days for contributors; zero disables
	MinAccountAgeDays int `json:"min_account_age_days"`

	// Base URL of the XP service, e.g. "https://xp.example.com"
	XPServiceURL string `json:"xp_service_url"`

	// XP required to start tasks carrying a given priority label
	XPThresholds map[string]int `json:"xp_thresholds"`

	// How long a PR may wait for review before it stops reducing the
	// author's effective load, e.g. "1 Day"
	ReviewDelayTolerance string `json:"review_delay_tolerance"`

	// Age after which an unassigned task is flagged stale, e.g. "4 Weeks";
	// empty disables staleness warnings
	TaskStaleTimeout string `json:"task_stale_timeout"`

	// Optional label/role restrictions on who may start which tasks
	RequiredLabels []LabelRule `json:"required_labels"`

	// Path to the SQLite wallet database
	WalletDBPath string `json:"wallet_db_path"`

	// API keys accepted by the public HTTP API; empty list disables auth
	APIKeys []string `json:"api_keys"`

	RateLimits RateLimits `json:"rate_limits"`

	// Runtime environment: "dev" or "prod"
	Env string `json:"env"`
}

// LoadConfig loads the configuration from a JSON file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Check for GitHub token in environment variable
	if envToken := os.Getenv(EnvGithubToken); envToken != "" {
		config.GitHubToken = envToken
	}
	if envKey := os.Getenv(EnvAPIKey); envKey != "" {
		config.APIKeys = append(config.APIKeys, envKey)
	}

	applyDefaults(&config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func applyDefaults(config *Config) {
	if config.TaskAccessScope == "" {
		config.TaskAccessScope = "org"
	}
	if config.ReviewDelayTolerance == "" {
		config.ReviewDelayTolerance = "1 Day"
	}
	if config.WalletDBPath == "" {
		config.WalletDBPath = "wallets.db"
	}
	if config.RateLimits.ValidatePerMinute == 0 {
		config.RateLimits.ValidatePerMinute = 10
	}
	if config.RateLimits.ExecutePerMinute == 0 {
		config.RateLimits.ExecutePerMinute = 3
	}
	if config.Env == "" {
		config.Env = "dev"
	}
}

// Validate checks the invariants the engine relies on.
func (c *Config) Validate() error {
	if c.Org == "" {
		return fmt.Errorf("config: org is required")
	}
	if c.TaskAccessScope != "repo" && c.TaskAccessScope != "org" {
		return fmt.Errorf("config: task_access_scope must be \"repo\" or \"org\", got %q", c.TaskAccessScope)
	}
	if len(c.RoleLimits) == 0 {
		return fmt.Errorf("config: role_limits must configure at least one role")
	}
	return nil
}

// SaveConfig saves the configuration to a JSON file
func SaveConfig(config *Config, path string) error {
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// CreateDefaultConfig creates a default configuration file if it doesn't exist
func CreateDefaultConfig(path string) error {
	// Check if the file already exists
	if _, err := os.Stat(path); err == nil {
		return nil // File exists, don't overwrite
	}

	config := &Config{
		GitHubToken:     "",
		BotLogin:        "assignbot[bot]",
		Org:             "example-org",
		TaskAccessScope: "org",
		RoleLimits: map[string]int{
			"admin":        20,
			"collaborator": 5,
			"contributor":  2,
		},
		UsdPriceMax: map[string]float64{
			"collaborator": 2000,
			"contributor":  500,
		},
		MinAccountAgeDays: 0,
		XPThresholds: map[string]int{
			"Priority: 3 (High)":   500,
			"Priority: 4 (Urgent)": 1000,
		},
		ReviewDelayTolerance: "1 Day",
		TaskStaleTimeout:     "4 Weeks",
		WalletDBPath:         "wallets.db",
	}

	// Ensure the directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return SaveConfig(config, path)
}

// SmallestRoleLimit returns the most conservative configured role/limit pair,
// used as the fallback when role resolution fails entirely.
func (c *Config) SmallestRoleLimit() (string, int) {
	role := ""
	limit := 0
	for r, l := range c.RoleLimits {
		if role == "" || l < limit || (l == limit && r < role) {
			role = r
			limit = l
		}
	}
	return role, limit
}

// SmallestPriceCeiling returns the lowest configured price ceiling, used when
// a role has no ceiling of its own.
func (c *Config) SmallestPriceCeiling() (float64, bool) {
	ceiling := 0.0
	found := false
	for _, v := range c.UsdPriceMax {
		if !found || v < ceiling {
			ceiling = v
		}
		found = true
	}
	return ceiling, found
}
