package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	// EnvQueueLeaseDuration overrides the job lease duration.
	EnvQueueLeaseDuration = "QUEUE_LEASE_DURATION"

	// EnvQueueStalledInterval overrides the stalled-job scan interval.
	EnvQueueStalledInterval = "QUEUE_STALLED_INTERVAL"

	// EnvQueueMaxAttempts overrides the per-job delivery attempt budget.
	EnvQueueMaxAttempts = "QUEUE_MAX_ATTEMPTS"

	// EnvQueueHealthInterval overrides the health reporting interval.
	EnvQueueHealthInterval = "QUEUE_HEALTH_INTERVAL"

	// EnvQueueCleanupInterval overrides the terminal-job cleanup interval.
	EnvQueueCleanupInterval = "QUEUE_CLEANUP_INTERVAL"

	// EnvQueueRetention overrides how long terminal job bookkeeping is retained.
	EnvQueueRetention = "QUEUE_RETENTION"

	// EnvQueueDocumentWorkers overrides the document-processing worker count.
	EnvQueueDocumentWorkers = "QUEUE_DOCUMENT_WORKERS"

	// EnvQueueImageWorkers overrides the image-analysis worker count.
	EnvQueueImageWorkers = "QUEUE_IMAGE_WORKERS"
)

// QueueConfig contains job queue and supervisor configuration.
type QueueConfig struct {
	LeaseDuration   string `toml:"lease_duration"`
	StalledInterval string `toml:"stalled_interval"`
	PollInterval    string `toml:"poll_interval"`
	MaxAttempts     int    `toml:"max_attempts"`
	HealthInterval  string `toml:"health_interval"`
	CleanupInterval string `toml:"cleanup_interval"`
	Retention       string `toml:"retention"`
	DocumentWorkers int    `toml:"document_workers"`
	ImageWorkers    int    `toml:"image_workers"`
}

// LeaseDurationValue parses and returns the lease duration.
func (c *QueueConfig) LeaseDurationValue() time.Duration {
	d, _ := time.ParseDuration(c.LeaseDuration)
	return d
}

// StalledIntervalValue parses and returns the stalled-job scan interval.
func (c *QueueConfig) StalledIntervalValue() time.Duration {
	d, _ := time.ParseDuration(c.StalledInterval)
	return d
}

// PollIntervalValue parses and returns the dequeue poll interval.
func (c *QueueConfig) PollIntervalValue() time.Duration {
	d, _ := time.ParseDuration(c.PollInterval)
	return d
}

// HealthIntervalValue parses and returns the health reporting interval.
func (c *QueueConfig) HealthIntervalValue() time.Duration {
	d, _ := time.ParseDuration(c.HealthInterval)
	return d
}

// CleanupIntervalValue parses and returns the cleanup interval.
func (c *QueueConfig) CleanupIntervalValue() time.Duration {
	d, _ := time.ParseDuration(c.CleanupInterval)
	return d
}

// RetentionValue parses and returns the terminal-job retention window.
func (c *QueueConfig) RetentionValue() time.Duration {
	d, _ := time.ParseDuration(c.Retention)
	return d
}

// Finalize applies defaults, loads environment overrides, and validates the queue configuration.
func (c *QueueConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge applies values from overlay configuration that differ from zero values.
func (c *QueueConfig) Merge(overlay *QueueConfig) {
	if overlay.LeaseDuration != "" {
		c.LeaseDuration = overlay.LeaseDuration
	}
	if overlay.StalledInterval != "" {
		c.StalledInterval = overlay.StalledInterval
	}
	if overlay.PollInterval != "" {
		c.PollInterval = overlay.PollInterval
	}
	if overlay.MaxAttempts != 0 {
		c.MaxAttempts = overlay.MaxAttempts
	}
	if overlay.HealthInterval != "" {
		c.HealthInterval = overlay.HealthInterval
	}
	if overlay.CleanupInterval != "" {
		c.CleanupInterval = overlay.CleanupInterval
	}
	if overlay.Retention != "" {
		c.Retention = overlay.Retention
	}
	if overlay.DocumentWorkers != 0 {
		c.DocumentWorkers = overlay.DocumentWorkers
	}
	if overlay.ImageWorkers != 0 {
		c.ImageWorkers = overlay.ImageWorkers
	}
}

func (c *QueueConfig) loadDefaults() {
	if c.LeaseDuration == "" {
		c.LeaseDuration = "5m"
	}
	if c.StalledInterval == "" {
		c.StalledInterval = "30s"
	}
	if c.PollInterval == "" {
		c.PollInterval = "1s"
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 3
	}
	if c.HealthInterval == "" {
		c.HealthInterval = "60s"
	}
	if c.CleanupInterval == "" {
		c.CleanupInterval = "1h"
	}
	if c.Retention == "" {
		c.Retention = "1h"
	}
	if c.DocumentWorkers == 0 {
		c.DocumentWorkers = 2
	}
	if c.ImageWorkers == 0 {
		c.ImageWorkers = 4
	}
}

func (c *QueueConfig) loadEnv() {
	if v := os.Getenv(EnvQueueLeaseDuration); v != "" {
		c.LeaseDuration = v
	}
	if v := os.Getenv(EnvQueueStalledInterval); v != "" {
		c.StalledInterval = v
	}
	if v := os.Getenv(EnvQueueMaxAttempts); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxAttempts = n
		}
	}
	if v := os.Getenv(EnvQueueHealthInterval); v != "" {
		c.HealthInterval = v
	}
	if v := os.Getenv(EnvQueueCleanupInterval); v != "" {
		c.CleanupInterval = v
	}
	if v := os.Getenv(EnvQueueRetention); v != "" {
		c.Retention = v
	}
	if v := os.Getenv(EnvQueueDocumentWorkers); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.DocumentWorkers = n
		}
	}
	if v := os.Getenv(EnvQueueImageWorkers); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.ImageWorkers = n
		}
	}
}

func (c *QueueConfig) validate() error {
	for name, value := range map[string]string{
		"lease_duration":   c.LeaseDuration,
		"stalled_interval": c.StalledInterval,
		"poll_interval":    c.PollInterval,
		"health_interval":  c.HealthInterval,
		"cleanup_interval": c.CleanupInterval,
		"retention":        c.Retention,
	} {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be positive")
	}
	if c.DocumentWorkers < 1 || c.ImageWorkers < 1 {
		return fmt.Errorf("worker counts must be positive")
	}
	if c.StalledIntervalValue() >= c.LeaseDurationValue() {
		return fmt.Errorf("stalled_interval must be shorter than lease_duration")
	}
	return nil
}
