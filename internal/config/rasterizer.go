package config

import (
	"fmt"
	"os"
	"strconv"
)

const (
	// EnvRasterizerQuality overrides the JPEG encoding quality.
	EnvRasterizerQuality = "RASTERIZER_QUALITY"

	// EnvRasterizerMaxPages overrides the per-document page limit.
	EnvRasterizerMaxPages = "RASTERIZER_MAX_PAGES"
)

// RasterizerConfig contains PDF page rendering configuration.
type RasterizerConfig struct {
	Quality  int `toml:"quality"`
	MaxPages int `toml:"max_pages"`
}

// Finalize applies defaults, loads environment overrides, and validates the rasterizer configuration.
func (c *RasterizerConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge applies values from overlay configuration that differ from zero values.
func (c *RasterizerConfig) Merge(overlay *RasterizerConfig) {
	if overlay.Quality != 0 {
		c.Quality = overlay.Quality
	}
	if overlay.MaxPages != 0 {
		c.MaxPages = overlay.MaxPages
	}
}

func (c *RasterizerConfig) loadDefaults() {
	if c.Quality == 0 {
		c.Quality = 85
	}
	if c.MaxPages == 0 {
		c.MaxPages = 500
	}
}

func (c *RasterizerConfig) loadEnv() {
	if v := os.Getenv(EnvRasterizerQuality); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Quality = n
		}
	}
	if v := os.Getenv(EnvRasterizerMaxPages); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxPages = n
		}
	}
}

func (c *RasterizerConfig) validate() error {
	if c.Quality < 1 || c.Quality > 100 {
		return fmt.Errorf("quality must be between 1 and 100")
	}
	if c.MaxPages < 1 {
		return fmt.Errorf("max_pages must be positive")
	}
	return nil
}
