// Package common provides shared utilities for fiscan: configuration, logging, and
// the ambient error taxonomy every component builds on.
package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for the scan job orchestrator.
type Config struct {
	Environment string `toml:"environment"`
	Server ServerConfig `toml:"server"`
	Logging LoggingConfig `toml:"logging"`
	Storage SurrealConfig `toml:"storage"`
	ObjectStore ObjectStoreConfig `toml:"object_store"`
	Extract ExtractConfig `toml:"extract"`
	Classifier ClassifierConfig `toml:"classifier"`
	Notify NotifyConfig `toml:"notify"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Worker WorkerConfig `toml:"worker"`
	Clients ClientsConfig `toml:"clients"`
}

// ServerConfig holds the minimal health/diagnostics listener configuration.
// The scan orchestrator has no admin HTTP surface; this
// just backs a liveness endpoint for process supervisors.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int `toml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `toml:"level"`
	Format string `toml:"format"`
	Outputs []string `toml:"outputs"`
}

// SurrealConfig holds SurrealDB connection configuration for the ScanJob, Checkpoint,
// Queue, Subscriber, and Match stores.
type SurrealConfig struct {
	Address string `toml:"address"`
	Namespace string `toml:"namespace"`
	Database string `toml:"database"`
	Username string `toml:"username"`
	Password string `toml:"password"`
}

// ObjectStoreConfig holds S3/S3-compatible object store configuration (C1, C2).
type ObjectStoreConfig struct {
	Bucket string `toml:"bucket"`
	Prefix string `toml:"prefix"`
	Region string `toml:"region"`
	Endpoint string `toml:"endpoint"` // custom endpoint for S3-compatible stores (MinIO, R2)
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	MaxObjectMB int `toml:"max_object_mb"`
	StreamToDiskMB int `toml:"stream_to_disk_mb"`
	FolderCacheTTL string `toml:"folder_cache_ttl"`
	RateLimitPerSec int `toml:"rate_limit_per_sec"`
}

// GetMaxObjectBytes returns MaxObjectMB in bytes, falling back to the spec default (25MB).
func (c *ObjectStoreConfig) GetMaxObjectBytes() int64 {
	if c.MaxObjectMB <= 0 {
		return 25 * 1024 * 1024
	}
	return int64(c.MaxObjectMB) * 1024 * 1024
}

// GetStreamToDiskBytes returns StreamToDiskMB in bytes, falling back to the spec default (8MB).
func (c *ObjectStoreConfig) GetStreamToDiskBytes() int64 {
	if c.StreamToDiskMB <= 0 {
		return 8 * 1024 * 1024
	}
	return int64(c.StreamToDiskMB) * 1024 * 1024
}

// GetFolderCacheTTL parses FolderCacheTTL, falling back to 5 minutes.
func (c *ObjectStoreConfig) GetFolderCacheTTL() time.Duration {
	d, err := time.ParseDuration(c.FolderCacheTTL)
	if err != nil {
		return 5 * time.Minute
	}
	return d
}

// GetRateLimitPerSec returns RateLimitPerSec, falling back to 20 requests/sec.
func (c *ObjectStoreConfig) GetRateLimitPerSec() int {
	if c.RateLimitPerSec <= 0 {
		return 20
	}
	return c.RateLimitPerSec
}

// ExtractConfig holds text-extraction tunables (C3).
type ExtractConfig struct {
	TextLengthCap int `toml:"text_length_cap"`
	OCRMinCharThreshold int `toml:"ocr_min_char_threshold"`
	OCRMaxPages int `toml:"ocr_max_pages"`
	OCRDPI int `toml:"ocr_dpi"`
}

// GetTextLengthCap returns TextLengthCap, falling back to the spec default (10,000 chars).
func (c *ExtractConfig) GetTextLengthCap() int {
	if c.TextLengthCap <= 0 {
		return 10000
	}
	return c.TextLengthCap
}

// GetOCRMinCharThreshold returns OCRMinCharThreshold, falling back to 100 (spec default).
func (c *ExtractConfig) GetOCRMinCharThreshold() int {
	if c.OCRMinCharThreshold <= 0 {
		return 100
	}
	return c.OCRMinCharThreshold
}

// GetOCRMaxPages returns OCRMaxPages, falling back to 20.
func (c *ExtractConfig) GetOCRMaxPages() int {
	if c.OCRMaxPages <= 0 {
		return 20
	}
	return c.OCRMaxPages
}

// ClassifierConfig holds the LLM-backed classifier pipeline's tunables (C4).
type ClassifierConfig struct {
	Model string `toml:"model"`
	CacheSize int `toml:"cache_size"`
	CallTimeout string `toml:"call_timeout"`
	MaxRetries int `toml:"max_retries"`
	CheapFilterChars int `toml:"cheap_filter_chars"`
}

// GetCacheSize returns CacheSize, falling back to 100 entries.
func (c *ClassifierConfig) GetCacheSize() int {
	if c.CacheSize <= 0 {
		return 100
	}
	return c.CacheSize
}

// GetCallTimeout returns CallTimeout, falling back to 60s.
func (c *ClassifierConfig) GetCallTimeout() time.Duration {
	d, err := time.ParseDuration(c.CallTimeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// GetMaxRetries returns MaxRetries, falling back to 3.
func (c *ClassifierConfig) GetMaxRetries() int {
	if c.MaxRetries <= 0 {
		return 3
	}
	return c.MaxRetries
}

// GetCheapFilterChars returns CheapFilterChars, falling back to 5000.
func (c *ClassifierConfig) GetCheapFilterChars() int {
	if c.CheapFilterChars <= 0 {
		return 5000
	}
	return c.CheapFilterChars
}

// NotifyConfig holds email dispatcher configuration (C6).
type NotifyConfig struct {
	SMTPHost string `toml:"smtp_host"`
	SMTPPort int `toml:"smtp_port"`
	SMTPUser string `toml:"smtp_user"`
	SMTPPassword string `toml:"smtp_password"`
	FromAddress string `toml:"from_address"`
	OperatorAddr string `toml:"operator_address"`
	DeepLinkBase string `toml:"deep_link_base"`
	HMACSecret string `toml:"hmac_secret"`
}

// SchedulerConfig holds the C9 scheduler's tunables.
type SchedulerConfig struct {
	Enabled bool `toml:"enabled"`
	PollInterval string `toml:"poll_interval"`
}

// GetPollInterval returns PollInterval, falling back to 1 minute.
func (c *SchedulerConfig) GetPollInterval() time.Duration {
	d, err := time.ParseDuration(c.PollInterval)
	if err != nil {
		return 1 * time.Minute
	}
	return d
}

// WorkerConfig holds the C10 worker/resource-governor tunables.
type WorkerConfig struct {
	Concurrency int `toml:"concurrency"`
	PauseRSSMB int `toml:"pause_rss_mb"`
	WarnRSSMB int `toml:"warn_rss_mb"`
	DocumentTimeout string `toml:"document_timeout"`
	CheckpointEvery int `toml:"checkpoint_every"`
	MaxRetries int `toml:"max_retries"`
	RetryBackoffStart string `toml:"retry_backoff_start"`
}

// GetConcurrency returns Concurrency, falling back to 1 (spec default, SCAN_WORKER_CONCURRENCY).
func (c *WorkerConfig) GetConcurrency() int {
	if c.Concurrency <= 0 {
		return 1
	}
	return c.Concurrency
}

// GetPauseRSSMB returns PauseRSSMB, falling back to 1700MB.
func (c *WorkerConfig) GetPauseRSSMB() int {
	if c.PauseRSSMB <= 0 {
		return 1700
	}
	return c.PauseRSSMB
}

// GetWarnRSSMB returns WarnRSSMB, falling back to 1500MB.
func (c *WorkerConfig) GetWarnRSSMB() int {
	if c.WarnRSSMB <= 0 {
		return 1500
	}
	return c.WarnRSSMB
}

// GetDocumentTimeout returns DocumentTimeout, falling back to 25s.
func (c *WorkerConfig) GetDocumentTimeout() time.Duration {
	d, err := time.ParseDuration(c.DocumentTimeout)
	if err != nil {
		return 25 * time.Second
	}
	return d
}

// GetCheckpointEvery returns CheckpointEvery, falling back to 100 documents.
func (c *WorkerConfig) GetCheckpointEvery() int {
	if c.CheckpointEvery <= 0 {
		return 100
	}
	return c.CheckpointEvery
}

// GetMaxRetries returns MaxRetries, falling back to 3.
func (c *WorkerConfig) GetMaxRetries() int {
	if c.MaxRetries <= 0 {
		return 3
	}
	return c.MaxRetries
}

// GetRetryBackoffStart returns RetryBackoffStart, falling back to 5s.
func (c *WorkerConfig) GetRetryBackoffStart() time.Duration {
	d, err := time.ParseDuration(c.RetryBackoffStart)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// ClientsConfig holds the external collaborator client configurations (§6).
type ClientsConfig struct {
	Gemini GeminiConfig `toml:"gemini"`
	OCR OCRConfig `toml:"ocr"`
	Metadata MetadataConfig `toml:"metadata"`
}

// GeminiConfig holds the LLM classifier backend configuration.
type GeminiConfig struct {
	APIKey string `toml:"api_key"`
	Model string `toml:"model"`
	RateLimitPerSec int `toml:"rate_limit_per_sec"`
}

// GetRateLimitPerSec returns RateLimitPerSec, falling back to 5 requests/sec
// (Gemini calls are far more expensive per-request than an S3 list/get).
func (c *GeminiConfig) GetRateLimitPerSec() int {
	if c.RateLimitPerSec <= 0 {
		return 5
	}
	return c.RateLimitPerSec
}

// OCRConfig holds the black-box OCR service's HTTP endpoint configuration.
type OCRConfig struct {
	BaseURL string `toml:"base_url"`
	Timeout string `toml:"timeout"`
}

// GetTimeout returns Timeout, falling back to 60s, the per-PDF-to-image conversion cap.
func (c *OCRConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// MetadataConfig holds the planning-metadata enrichment service's HTTP endpoint configuration.
type MetadataConfig struct {
	BaseURL string `toml:"base_url"`
	Timeout string `toml:"timeout"`
}

// GetTimeout returns Timeout, falling back to 10s.
func (c *MetadataConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// NewDefaultConfig returns a Config with sensible defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8081,
		},
		Logging: LoggingConfig{
			Level: "info",
			Format: "json",
			Outputs: []string{"console"},
		},
		Storage: SurrealConfig{
			Address: "ws://localhost:8000/rpc",
			Namespace: "fiscan",
			Database: "fiscan",
		},
		ObjectStore: ObjectStoreConfig{
			MaxObjectMB: 25,
			StreamToDiskMB: 8,
			FolderCacheTTL: "5m",
			RateLimitPerSec: 20,
		},
		Extract: ExtractConfig{
			TextLengthCap: 10000,
			OCRMinCharThreshold: 100,
			OCRMaxPages: 20,
			OCRDPI: 150,
		},
		Classifier: ClassifierConfig{
			Model: "gemini-3-flash-preview",
			CacheSize: 100,
			CallTimeout: "60s",
			MaxRetries: 3,
			CheapFilterChars: 5000,
		},
		Scheduler: SchedulerConfig{
			Enabled: true,
			PollInterval: "1m",
		},
		Worker: WorkerConfig{
			Concurrency: 1,
			PauseRSSMB: 1700,
			WarnRSSMB: 1500,
			DocumentTimeout: "25s",
			CheckpointEvery: 100,
			MaxRetries: 3,
			RetryBackoffStart: "5s",
		},
		Clients: ClientsConfig{
			Gemini: GeminiConfig{Model: "gemini-3-flash-preview"},
			OCR: OCRConfig{Timeout: "60s"},
			Metadata: MetadataConfig{Timeout: "10s"},
		},
	}
}

// LoadConfig loads configuration from files with environment overrides, later files
// overriding earlier ones.
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for _, path := range paths {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)
	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config. The
// handful of verbatim names (SCAN_*, MAX_S3_OBJECT_MB, ...) are honored as-is,
// as are the standard credential variables AWS_ACCESS_KEY_ID,
// AWS_SECRET_ACCESS_KEY and GEMINI_API_KEY (or GOOGLE_API_KEY); everything
// else follows the FISCAN_* naming used elsewhere in this file.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("FISCAN_ENV"); v != "" {
		config.Environment = v
	}
	if v := os.Getenv("FISCAN_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}

	if v := os.Getenv("SCAN_SCHEDULER_ENABLED"); v != "" {
		config.Scheduler.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("SCAN_WORKER_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Worker.Concurrency = n
		}
	}
	if v := os.Getenv("MAX_S3_OBJECT_MB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.ObjectStore.MaxObjectMB = n
		}
	}
	if v := os.Getenv("STREAMING_PDF_THRESHOLD_MB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.ObjectStore.StreamToDiskMB = n
		}
	}
	if v := os.Getenv("OCR_MIN_CHAR_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Extract.OCRMinCharThreshold = n
		}
	}

	if v := os.Getenv("FISCAN_S3_BUCKET"); v != "" {
		config.ObjectStore.Bucket = v
	}
	if v := os.Getenv("FISCAN_S3_PREFIX"); v != "" {
		config.ObjectStore.Prefix = v
	}
	if v := os.Getenv("FISCAN_S3_REGION"); v != "" {
		config.ObjectStore.Region = v
	}
	if v := os.Getenv("FISCAN_S3_ENDPOINT"); v != "" {
		config.ObjectStore.Endpoint = v
	}
	if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
		config.ObjectStore.AccessKey = v
	}
	if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
		config.ObjectStore.SecretKey = v
	}

	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		config.Clients.Gemini.APIKey = v
	} else if v := os.Getenv("GOOGLE_API_KEY"); v != "" {
		config.Clients.Gemini.APIKey = v
	}

	if v := os.Getenv("FISCAN_SURREAL_ADDRESS"); v != "" {
		config.Storage.Address = v
	}
	if v := os.Getenv("FISCAN_SURREAL_USER"); v != "" {
		config.Storage.Username = v
	}
	if v := os.Getenv("FISCAN_SURREAL_PASSWORD"); v != "" {
		config.Storage.Password = v
	}

	if v := os.Getenv("FISCAN_SMTP_HOST"); v != "" {
		config.Notify.SMTPHost = v
	}
	if v := os.Getenv("FISCAN_SMTP_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Notify.SMTPPort = n
		}
	}
	if v := os.Getenv("FISCAN_SMTP_USER"); v != "" {
		config.Notify.SMTPUser = v
	}
	if v := os.Getenv("FISCAN_SMTP_PASSWORD"); v != "" {
		config.Notify.SMTPPassword = v
	}
	if v := os.Getenv("FISCAN_NOTIFY_HMAC_SECRET"); v != "" {
		config.Notify.HMACSecret = v
	}

	if v := os.Getenv("FISCAN_OCR_BASE_URL"); v != "" {
		config.Clients.OCR.BaseURL = v
	}
	if v := os.Getenv("FISCAN_METADATA_BASE_URL"); v != "" {
		config.Clients.Metadata.BaseURL = v
	}
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
