package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	// EnvVisionCredentialsFile overrides the Vision API credentials file path.
	EnvVisionCredentialsFile = "VISION_CREDENTIALS_FILE"

	// EnvVisionTimeout overrides the per-call analysis timeout.
	EnvVisionTimeout = "VISION_TIMEOUT"

	// EnvVisionMaxResults overrides the per-feature result cap.
	EnvVisionMaxResults = "VISION_MAX_RESULTS"
)

// VisionConfig contains image analysis client configuration.
type VisionConfig struct {
	// CredentialsFile is the path to a Google service account key.
	// When empty, application default credentials are used.
	CredentialsFile string `toml:"credentials_file"`
	Timeout         string `toml:"timeout"`
	MaxResults      int    `toml:"max_results"`
}

// TimeoutDuration parses and returns the per-call timeout.
func (c *VisionConfig) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

// Finalize applies defaults, loads environment overrides, and validates the vision configuration.
func (c *VisionConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge applies values from overlay configuration that differ from zero values.
func (c *VisionConfig) Merge(overlay *VisionConfig) {
	if overlay.CredentialsFile != "" {
		c.CredentialsFile = overlay.CredentialsFile
	}
	if overlay.Timeout != "" {
		c.Timeout = overlay.Timeout
	}
	if overlay.MaxResults != 0 {
		c.MaxResults = overlay.MaxResults
	}
}

func (c *VisionConfig) loadDefaults() {
	if c.Timeout == "" {
		c.Timeout = "30s"
	}
	if c.MaxResults == 0 {
		c.MaxResults = 10
	}
}

func (c *VisionConfig) loadEnv() {
	if v := os.Getenv(EnvVisionCredentialsFile); v != "" {
		c.CredentialsFile = v
	}
	if v := os.Getenv(EnvVisionTimeout); v != "" {
		c.Timeout = v
	}
	if v := os.Getenv(EnvVisionMaxResults); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxResults = n
		}
	}
}

func (c *VisionConfig) validate() error {
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}
	if c.MaxResults < 1 {
		return fmt.Errorf("max_results must be positive")
	}
	return nil
}
