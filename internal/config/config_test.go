package config

import (
	"testing"
	"time"
)

func TestQueueConfigDefaults(t *testing.T) {
	var cfg QueueConfig
	if err := cfg.Finalize(); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	if cfg.LeaseDurationValue() != 5*time.Minute {
		t.Errorf("expected 5m lease, got %v", cfg.LeaseDurationValue())
	}
	if cfg.StalledIntervalValue() != 30*time.Second {
		t.Errorf("expected 30s stalled interval, got %v", cfg.StalledIntervalValue())
	}
	if cfg.MaxAttempts != 3 {
		t.Errorf("expected 3 attempts, got %d", cfg.MaxAttempts)
	}
	if cfg.HealthIntervalValue() != time.Minute {
		t.Errorf("expected 60s health interval, got %v", cfg.HealthIntervalValue())
	}
	if cfg.CleanupIntervalValue() != time.Hour || cfg.RetentionValue() != time.Hour {
		t.Errorf("expected 1h cleanup and retention, got %v / %v",
			cfg.CleanupIntervalValue(), cfg.RetentionValue())
	}
	if cfg.DocumentWorkers != 2 || cfg.ImageWorkers != 4 {
		t.Errorf("unexpected worker defaults: %d / %d", cfg.DocumentWorkers, cfg.ImageWorkers)
	}
}

func TestQueueConfigRejectsLongStalledInterval(t *testing.T) {
	cfg := QueueConfig{LeaseDuration: "30s", StalledInterval: "1m"}
	if err := cfg.Finalize(); err == nil {
		t.Error("expected stalled_interval >= lease_duration to fail validation")
	}
}

func TestQueueConfigMerge(t *testing.T) {
	base := QueueConfig{}
	if err := base.Finalize(); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	base.Merge(&QueueConfig{MaxAttempts: 5, ImageWorkers: 8})
	if base.MaxAttempts != 5 {
		t.Errorf("expected merged attempts 5, got %d", base.MaxAttempts)
	}
	if base.ImageWorkers != 8 {
		t.Errorf("expected merged workers 8, got %d", base.ImageWorkers)
	}
	if base.LeaseDuration != "5m" {
		t.Errorf("expected untouched lease duration, got %s", base.LeaseDuration)
	}
}

func TestServerConfigDefaults(t *testing.T) {
	var cfg ServerConfig
	if err := cfg.Finalize(); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	if cfg.Port != 3000 {
		t.Errorf("expected port 3000, got %d", cfg.Port)
	}
	if cfg.Addr() != ":3000" {
		t.Errorf("expected :3000, got %s", cfg.Addr())
	}
}

func TestStorageConfigUploadSize(t *testing.T) {
	cfg := StorageConfig{BasePath: ".data", MaxUploadSize: "50MB"}
	if err := cfg.Finalize(); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	if got := cfg.MaxUploadSizeBytes(); got != 50*1000*1000 {
		t.Errorf("expected 50MB in bytes, got %d", got)
	}
}

func TestStorageConfigRejectsBadSize(t *testing.T) {
	cfg := StorageConfig{BasePath: ".data", MaxUploadSize: "fifty megabytes"}
	if err := cfg.Finalize(); err == nil {
		t.Error("expected unparsable max_upload_size to fail validation")
	}
}

func TestLoggingConfigLevels(t *testing.T) {
	tests := []struct {
		level string
		valid bool
	}{
		{"debug", true},
		{"info", true},
		{"warn", true},
		{"error", true},
		{"verbose", false},
	}

	for _, tc := range tests {
		cfg := LoggingConfig{Level: tc.level}
		err := cfg.Finalize()
		if tc.valid && err != nil {
			t.Errorf("level %s: unexpected error %v", tc.level, err)
		}
		if !tc.valid && err == nil {
			t.Errorf("level %s: expected validation failure", tc.level)
		}
	}
}

func TestRasterizerConfigValidation(t *testing.T) {
	var cfg RasterizerConfig
	if err := cfg.Finalize(); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if cfg.Quality != 85 || cfg.MaxPages != 500 {
		t.Errorf("unexpected defaults: quality %d, max pages %d", cfg.Quality, cfg.MaxPages)
	}

	bad := RasterizerConfig{Quality: 150}
	if err := bad.Finalize(); err == nil {
		t.Error("expected quality above 100 to fail validation")
	}
}
