// Package config provides environment-variable-first configuration loading
// with optional YAML file fallback for the mail handler.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// defaultVerifyTimeout is the siteverify call timeout in seconds.
const defaultVerifyTimeout = 10

// Config holds the complete application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Provider string         `yaml:"provider"`
	SES      SESConfig      `yaml:"ses"`
	Graph    GraphConfig    `yaml:"graph"`
	Verify   VerifyConfig   `yaml:"verify"`
	Branding BrandingConfig `yaml:"branding"`
	TLS      TLSConfig      `yaml:"tls"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds HTTP front-end configuration.
type ServerConfig struct {
	Listen    string `yaml:"listen"`
	AuthToken string `yaml:"auth_token"`
}

// SESConfig holds AWS SES configuration.
type SESConfig struct {
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// GraphConfig holds Microsoft Graph API configuration.
type GraphConfig struct {
	TenantID     string `yaml:"tenant_id"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	Sender       string `yaml:"sender"`
}

// VerifyConfig holds human-verification service configuration.
type VerifyConfig struct {
	// Endpoint overrides the default siteverify URL; empty means the
	// production endpoint.
	Endpoint string `yaml:"endpoint"`

	// TimeoutSeconds bounds each verification call.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// BrandingConfig holds brand asset loading configuration.
type BrandingConfig struct {
	// AssetRoot, when set, anchors relative brand asset paths.
	AssetRoot string `yaml:"asset_root"`

	// StrictAssets makes a missing asset file fail the send instead of
	// degrading to empty content.
	StrictAssets bool `yaml:"strict_assets"`
}

// TLSConfig holds TLS settings for the HTTP front-end.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load loads configuration from environment variables with sensible defaults.
// Environment variables always take precedence.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.applyEnvVars()
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file as the base layer,
// then overrides with environment variables. Returns an error if the
// specified file path does not exist.
func LoadFromFile(path string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Environment variables always override YAML values
	cfg.applyEnvVars()

	return cfg, nil
}

// SESConfigured returns true if the SES region is set.
func (c *Config) SESConfigured() bool {
	return c.SES.Region != ""
}

// GraphConfigured returns true if all four Graph API credentials are set.
func (c *Config) GraphConfigured() bool {
	return c.Graph.TenantID != "" &&
		c.Graph.ClientID != "" &&
		c.Graph.ClientSecret != "" &&
		c.Graph.Sender != ""
}

// applyDefaults sets sensible default values for all configuration fields.
func (c *Config) applyDefaults() {
	c.Server.Listen = ":8080"
	c.Verify.TimeoutSeconds = defaultVerifyTimeout
	c.Logging.Level = "info"
}

// applyEnvVars overrides configuration with environment variable values.
// Only non-empty environment variables override existing values.
func (c *Config) applyEnvVars() {
	if v := os.Getenv("LISTEN"); v != "" {
		c.Server.Listen = v
	}
	if v := os.Getenv("AUTH_TOKEN"); v != "" {
		c.Server.AuthToken = v
	}
	if v := os.Getenv("PROVIDER"); v != "" {
		c.Provider = strings.ToLower(v)
	}

	if v := os.Getenv("SES_REGION"); v != "" {
		c.SES.Region = v
	}
	if v := os.Getenv("SES_ACCESS_KEY_ID"); v != "" {
		c.SES.AccessKeyID = v
	}
	if v := os.Getenv("SES_SECRET_ACCESS_KEY"); v != "" {
		c.SES.SecretAccessKey = v
	}

	if v := os.Getenv("GRAPH_TENANT_ID"); v != "" {
		c.Graph.TenantID = v
	}
	if v := os.Getenv("GRAPH_CLIENT_ID"); v != "" {
		c.Graph.ClientID = v
	}
	if v := os.Getenv("GRAPH_CLIENT_SECRET"); v != "" {
		c.Graph.ClientSecret = v
	}
	if v := os.Getenv("GRAPH_SENDER"); v != "" {
		c.Graph.Sender = v
	}

	if v := os.Getenv("VERIFY_ENDPOINT"); v != "" {
		c.Verify.Endpoint = v
	}
	if v := os.Getenv("VERIFY_TIMEOUT_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			c.Verify.TimeoutSeconds = secs
		}
	}

	if v := os.Getenv("BRAND_ASSET_ROOT"); v != "" {
		c.Branding.AssetRoot = v
	}
	if v := os.Getenv("BRAND_STRICT_ASSETS"); v != "" {
		if strict, err := strconv.ParseBool(v); err == nil {
			c.Branding.StrictAssets = strict
		}
	}

	if v := os.Getenv("TLS_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			c.TLS.Enabled = enabled
		}
	}
	if v := os.Getenv("TLS_CERT_FILE"); v != "" {
		c.TLS.CertFile = v
	}
	if v := os.Getenv("TLS_KEY_FILE"); v != "" {
		c.TLS.KeyFile = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
}
