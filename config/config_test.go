package config

import (
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv()
	if cfg.Port != 9321 {
		t.Errorf("Port = %d, want 9321", cfg.Port)
	}
	if cfg.DownloadWorkers != 3 {
		t.Errorf("DownloadWorkers = %d, want 3", cfg.DownloadWorkers)
	}
	if cfg.StageTimeout != 300*time.Second {
		t.Errorf("StageTimeout = %v, want 5m", cfg.StageTimeout)
	}
	if cfg.CommandTimeout != 10*time.Second {
		t.Errorf("CommandTimeout = %v, want 10s", cfg.CommandTimeout)
	}
	if cfg.AudioBitrate != "192k" || cfg.AudioSampleRate != "44100" {
		t.Errorf("unexpected audio defaults %q %q", cfg.AudioBitrate, cfg.AudioSampleRate)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("DOWNLOAD_WORKERS", "5")
	t.Setenv("STAGE_TIMEOUT", "90")
	t.Setenv("SETTLE_DELAY", "250ms")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("DOWNLOAD_WORKERS_BAD", "x")

	cfg := FromEnv()
	if cfg.Port != 8080 {
		t.Errorf("Port = %d", cfg.Port)
	}
	if cfg.DownloadWorkers != 5 {
		t.Errorf("DownloadWorkers = %d", cfg.DownloadWorkers)
	}
	if cfg.StageTimeout != 90*time.Second {
		t.Errorf("StageTimeout = %v", cfg.StageTimeout)
	}
	if cfg.SettleDelay != 250*time.Millisecond {
		t.Errorf("SettleDelay = %v", cfg.SettleDelay)
	}
	if !cfg.RedisEnabled {
		t.Error("RedisEnabled should be true")
	}
}

func TestGetEnvIntInvalidFallsBack(t *testing.T) {
	t.Setenv("BARD_TEST_INT", "not-a-number")
	if got := getEnvInt("BARD_TEST_INT", 7); got != 7 {
		t.Errorf("getEnvInt = %d, want 7", got)
	}
}
