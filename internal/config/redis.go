package config

import (
	"fmt"
	"os"
	"strconv"
)

const (
	// EnvRedisAddr overrides the Redis address.
	EnvRedisAddr = "REDIS_ADDR"

	// EnvRedisPassword overrides the Redis password.
	EnvRedisPassword = "REDIS_PASSWORD"

	// EnvRedisDB overrides the Redis database index.
	EnvRedisDB = "REDIS_DB"

	// EnvRedisPoolSize overrides the Redis connection pool size.
	EnvRedisPoolSize = "REDIS_POOL_SIZE"
)

// RedisConfig contains broker connection configuration.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	PoolSize int    `toml:"pool_size"`
}

// Finalize applies defaults, loads environment overrides, and validates the Redis configuration.
func (c *RedisConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge applies values from overlay configuration that differ from zero values.
func (c *RedisConfig) Merge(overlay *RedisConfig) {
	if overlay.Addr != "" {
		c.Addr = overlay.Addr
	}
	if overlay.Password != "" {
		c.Password = overlay.Password
	}
	if overlay.DB != 0 {
		c.DB = overlay.DB
	}
	if overlay.PoolSize != 0 {
		c.PoolSize = overlay.PoolSize
	}
}

func (c *RedisConfig) loadDefaults() {
	if c.Addr == "" {
		c.Addr = "localhost:6379"
	}
	if c.PoolSize == 0 {
		c.PoolSize = 10
	}
}

func (c *RedisConfig) loadEnv() {
	if v := os.Getenv(EnvRedisAddr); v != "" {
		c.Addr = v
	}
	if v := os.Getenv(EnvRedisPassword); v != "" {
		c.Password = v
	}
	if v := os.Getenv(EnvRedisDB); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			c.DB = db
		}
	}
	if v := os.Getenv(EnvRedisPoolSize); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.PoolSize = n
		}
	}
}

func (c *RedisConfig) validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr required")
	}
	if c.DB < 0 {
		return fmt.Errorf("db cannot be negative")
	}
	return nil
}
