package common

import (
	"testing"
	"time"
)

func TestConfig_DefaultPort(t *testing.T) {
	cfg := NewDefaultConfig()
	if cfg.Server.Port != 8081 {
		t.Errorf("Server.Port default = %d, want %d", cfg.Server.Port, 8081)
	}
}

func TestConfig_SchedulerEnabledEnvOverride(t *testing.T) {
	t.Setenv("SCAN_SCHEDULER_ENABLED", "false")
	cfg := NewDefaultConfig()
	applyEnvOverrides(cfg)
	if cfg.Scheduler.Enabled {
		t.Errorf("Scheduler.Enabled = true after env override, want false")
	}
}

func TestConfig_WorkerConcurrencyEnvOverride(t *testing.T) {
	t.Setenv("SCAN_WORKER_CONCURRENCY", "3")
	cfg := NewDefaultConfig()
	applyEnvOverrides(cfg)
	if cfg.Worker.Concurrency != 3 {
		t.Errorf("Worker.Concurrency = %d after env override, want 3", cfg.Worker.Concurrency)
	}
}

func TestConfig_MaxS3ObjectMBEnvOverride(t *testing.T) {
	t.Setenv("MAX_S3_OBJECT_MB", "50")
	cfg := NewDefaultConfig()
	applyEnvOverrides(cfg)
	if cfg.ObjectStore.MaxObjectMB != 50 {
		t.Errorf("ObjectStore.MaxObjectMB = %d after env override, want 50", cfg.ObjectStore.MaxObjectMB)
	}
}

func TestConfig_GeminiKeyGoogleEnvFallback(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "google-fallback")
	cfg := NewDefaultConfig()
	applyEnvOverrides(cfg)
	if cfg.Clients.Gemini.APIKey != "google-fallback" {
		t.Errorf("Clients.Gemini.APIKey = %q, want %q", cfg.Clients.Gemini.APIKey, "google-fallback")
	}
}

func TestObjectStoreConfig_GetMaxObjectBytes_Default(t *testing.T) {
	c := &ObjectStoreConfig{}
	if got := c.GetMaxObjectBytes(); got != 25*1024*1024 {
		t.Errorf("GetMaxObjectBytes() = %d, want %d", got, 25*1024*1024)
	}
}

func TestObjectStoreConfig_GetMaxObjectBytes_Configured(t *testing.T) {
	c := &ObjectStoreConfig{MaxObjectMB: 10}
	if got := c.GetMaxObjectBytes(); got != 10*1024*1024 {
		t.Errorf("GetMaxObjectBytes() = %d, want %d", got, 10*1024*1024)
	}
}

func TestObjectStoreConfig_GetFolderCacheTTL_Default(t *testing.T) {
	c := &ObjectStoreConfig{}
	if got := c.GetFolderCacheTTL(); got != 5*time.Minute {
		t.Errorf("GetFolderCacheTTL() = %v, want 5m", got)
	}
}

func TestObjectStoreConfig_GetFolderCacheTTL_InvalidFallsBack(t *testing.T) {
	c := &ObjectStoreConfig{FolderCacheTTL: "not-a-duration"}
	if got := c.GetFolderCacheTTL(); got != 5*time.Minute {
		t.Errorf("GetFolderCacheTTL() = %v, want 5m (fallback for invalid)", got)
	}
}

func TestWorkerConfig_GetPauseRSSMB_Default(t *testing.T) {
	c := &WorkerConfig{}
	if got := c.GetPauseRSSMB(); got != 1700 {
		t.Errorf("GetPauseRSSMB() = %d, want 1700", got)
	}
}

func TestWorkerConfig_GetPauseRSSMB_Configured(t *testing.T) {
	c := &WorkerConfig{PauseRSSMB: 1200}
	if got := c.GetPauseRSSMB(); got != 1200 {
		t.Errorf("GetPauseRSSMB() = %d, want 1200", got)
	}
}

func TestWorkerConfig_GetDocumentTimeout_Default(t *testing.T) {
	c := &WorkerConfig{}
	if got := c.GetDocumentTimeout(); got != 25*time.Second {
		t.Errorf("GetDocumentTimeout() = %v, want 25s", got)
	}
}

func TestWorkerConfig_GetDocumentTimeout_Configured(t *testing.T) {
	// Document timeout has no env override per — only a config-file/default pair.
	c := &WorkerConfig{DocumentTimeout: "10s"}
	if got := c.GetDocumentTimeout(); got != 10*time.Second {
		t.Errorf("GetDocumentTimeout() = %v, want 10s", got)
	}
}

func TestClassifierConfig_GetMaxRetries_ZeroFallsBack(t *testing.T) {
	c := &ClassifierConfig{MaxRetries: 0}
	if got := c.GetMaxRetries(); got != 3 {
		t.Errorf("GetMaxRetries() = %d, want 3 (fallback for zero)", got)
	}
}

func TestClassifierConfig_GetCacheSize_Configured(t *testing.T) {
	c := &ClassifierConfig{CacheSize: 250}
	if got := c.GetCacheSize(); got != 250 {
		t.Errorf("GetCacheSize() = %d, want 250", got)
	}
}
