// Package interfaces defines service contracts for fiscan.
package interfaces

import (
	"context"
	"time"

	"github.com/karlennis/fiscan/internal/models"
)

// CheckpointStore persists the durable per-job cursor (C7).
type CheckpointStore interface {
	// Load returns the checkpoint for jobID, or a zero Checkpoint if none exists.
	Load(ctx context.Context, jobID string) (models.Checkpoint, error)

	// Flush idempotently upserts the checkpoint for jobID.
	Flush(ctx context.Context, jobID string, cp models.Checkpoint) error

	// Clear resets the checkpoint for jobID to zero, on cancellation or completion.
	Clear(ctx context.Context, jobID string) error
}

// QueueStore manages the single-flight job admission queue (C8).
type QueueStore interface {
	// Enqueue is a no-op if a non-terminal entry already exists for the entry's
	// job_key; it returns the existing entry in that case.
	Enqueue(ctx context.Context, entry *models.QueueEntry) (*models.QueueEntry, error)

	// Dequeue atomically claims the oldest pending entry whose backoff has elapsed.
	Dequeue(ctx context.Context) (*models.QueueEntry, error)

	// Complete marks an entry completed or failed (if entryErr != nil) and records completed_at.
	Complete(ctx context.Context, id string, entryErr error) error

	// Retry re-queues an entry with a backoff_until in the future, or marks it
	// failed permanently once max_attempts is exhausted. Attempts are counted by
	// Dequeue when it claims the entry, not by Retry.
	Retry(ctx context.Context, id string, backoff time.Duration) error

	// Cancel marks a queued (not yet running) entry cancelled.
	Cancel(ctx context.Context, id string) error

	// HasActiveEntry reports whether jobKey has a non-terminal entry.
	HasActiveEntry(ctx context.Context, jobKey string) (bool, error)

	ListPending(ctx context.Context, limit int) ([]*models.QueueEntry, error)
	ResetOrphanedRunning(ctx context.Context) (int, error)
}

// ScanJobStore manages ScanJob records.
type ScanJobStore interface {
	Get(ctx context.Context, jobID string) (*models.ScanJob, error)
	Save(ctx context.Context, job *models.ScanJob) error
	List(ctx context.Context) ([]*models.ScanJob, error)
	Delete(ctx context.Context, jobID string) error
}

// SubscriberStore manages Subscriber records.
type SubscriberStore interface {
	List(ctx context.Context) ([]*models.Subscriber, error)
	Get(ctx context.Context, id string) (*models.Subscriber, error)
	Save(ctx context.Context, sub *models.Subscriber) error
}

// MatchStore persists confirmed, subscriber-enriched matches.
type MatchStore interface {
	Save(ctx context.Context, m *models.MatchRecord) error
	ListByJob(ctx context.Context, jobID string) ([]*models.MatchRecord, error)
}

// DeliveryStore persists notification delivery-attempt records (C6).
type DeliveryStore interface {
	Save(ctx context.Context, d *models.DeliveryAttempt) error
	ListByJob(ctx context.Context, jobID string) ([]*models.DeliveryAttempt, error)
}

// AuditStore persists per-document DailyRunItem audit records when a job's
// EnableAudit flag is set.
type AuditStore interface {
	Save(ctx context.Context, item *models.DailyRunItem) error
}

// ObjectEntry is one enumerated object-store entry (C1).
type ObjectEntry struct {
	Key string
	Size int64
	LastModified time.Time
}

// ObjectLister enumerates objects under a prefix by modification-time window (C1).
type ObjectLister interface {
	// List returns a sequence of entries matching the project-layout regex and
	// falling within [startTS, endTS), paginated at up to 1000 entries per page.
	// continuationToken, if non-empty, resumes a server-side cursor; otherwise,
	// if lastProcessedKey is non-empty, entries up to and including it are
	// skipped by key comparison.
	List(ctx context.Context, prefix string, startTS, endTS time.Time, continuationToken, lastProcessedKey string) func(yield func(ObjectEntry, error) bool)

	// CurrentContinuationToken returns the opaque token for the in-flight page,
	// to be persisted in the checkpoint after each page boundary.
	CurrentContinuationToken() string
}

// FetchResult is the outcome of a Document Fetcher call (C2).
type FetchResult struct {
	Data []byte // populated for small objects held in memory
	FilePath string // populated for large objects streamed to disk; caller must not assume cleanup
	Size int64
}

// ObjectFetcher retrieves object bytes, streaming to disk when large (C2).
type ObjectFetcher interface {
	Fetch(ctx context.Context, key string) (FetchResult, error)
}

// ExtractResult is the outcome of a Text Extractor call (C3).
type ExtractResult struct {
	Text string
	CharCount int
	Truncated bool
	OK bool
	Reason string
}

// Extractor turns document bytes/path into plain text (C3).
type Extractor interface {
	Extract(ctx context.Context, data []byte, filePath string, format string) (ExtractResult, error)
}

// LLMClassifier is the minimal interface the classifier cascade needs from an LLM
// backend: a cheap filter and a
// full classify call, so a deterministic stub can back the test suite.
type LLMClassifier interface {
	CheapFilter(ctx context.Context, textPrefix string) (bool, error)
	ClassifyFI(ctx context.Context, text, targetType string) (ClassifyResult, error)
}

// ClassifyResult is the structured output of the full FI-detection/report-type-match call.
type ClassifyResult struct {
	IsFI bool
	MatchesType bool
	ValidationQuote string
	Confidence float64
}

// MetadataClient fetches project metadata from the planning-metadata enrichment service.
type MetadataClient interface {
	GetProjectMetadata(ctx context.Context, projectID string) (*models.ProjectMetadata, error)
}

// OCRClient is the black-box OCR service contract (§6 "ocr(pdf_path, max_pages) -> string").
type OCRClient interface {
	OCR(ctx context.Context, pdfPath string, maxPages int) (string, error)
}

// EmailBatch is the payload for one subscriber's batched match notification (§6).
type EmailBatch struct {
	Subscriber models.Subscriber
	Matches []EnrichedMatch
	ReportTypes []string
	JobID string
	GeneratedAt time.Time
}

// EnrichedMatch is a MatchRecord joined with its ProjectMetadata for display.
type EnrichedMatch struct {
	models.MatchRecord
	Project models.ProjectMetadata
}

// ProgressPayload is the per-checkpoint-flush operator notification (§6).
type ProgressPayload struct {
	JobName string
	Processed int
	Total int
	MatchesFound int
	RecentMatches []EnrichedMatch
}

// SummaryPayload is the end-of-run operator notification (§6).
type SummaryPayload struct {
	JobName string
	Processed int
	Total int
	MatchesFound int
	Matches []EnrichedMatch
	Duration time.Duration
	Err string
}

// EmailClient sends the three notification kinds the dispatcher composes (§6).
type EmailClient interface {
	SendBatch(ctx context.Context, batch EmailBatch) error
	SendProgress(ctx context.Context, adminAddr string, p ProgressPayload) error
	SendSummary(ctx context.Context, adminAddr string, s SummaryPayload) error
}
