// Package config holds the environment-driven service configuration.
package config

// Environment modes. Production tightens credential resolution: delegation
// requires real user/project identifiers and wins over direct credentials.
const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
)

// Config carries everything the service reads from its environment.
type Config struct {
	// Direct long-lived credential pair.
	AccessKeyID     string
	SecretAccessKey string

	// Delegated-role exchange target.
	AssumeRoleARN      string
	AssumeRoleExternal string

	Region      string
	Environment string

	Port          int
	WorkspaceRoot string

	LogLevel  string
	LogFormat string
}

// HasDirectCredentials reports whether a usable direct pair is configured.
func (c *Config) HasDirectCredentials() bool {
	return c.AccessKeyID != "" && c.SecretAccessKey != ""
}

// HasDelegation reports whether a role-assumption target is configured.
func (c *Config) HasDelegation() bool {
	return c.AssumeRoleARN != ""
}

// IsProduction reports whether the service runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}
