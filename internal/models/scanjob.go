package models

import "time"

// Document type constants — the closed set of FI report types this pipeline detects,
// plus "other" for jobs that don't target a specific type.
const (
	DocTypeAcoustic = "acoustic"
	DocTypeTransport = "transport"
	DocTypeFlood = "flood"
	DocTypeContamination = "contamination"
	DocTypeEcology = "ecology"
	DocTypeArboricultural = "arboricultural"
	DocTypeEcological = "ecological"
	DocTypeHeritage = "heritage"
	DocTypeLighting = "lighting"
	DocTypeOther = "other"
)

// ScanJob status constants.
const (
	ScanJobStatusActive = "ACTIVE"
	ScanJobStatusRunning = "RUNNING"
	ScanJobStatusPaused = "PAUSED"
	ScanJobStatusStopped = "STOPPED"
	ScanJobStatusCancelling = "CANCELLING"
	ScanJobStatusError = "ERROR"
)

// Schedule type constants.
const (
	ScheduleDaily = "DAILY"
	ScheduleWeekly = "WEEKLY"
	ScheduleMonthly = "MONTHLY"
	ScheduleCustom = "CUSTOM"
)

// ScanJobConfig holds the tunables a job run is evaluated against.
type ScanJobConfig struct {
	ConfidenceThreshold float64 `json:"confidence_threshold"`
	ReviewThreshold float64 `json:"review_threshold"`
	AutoProcess bool `json:"auto_process"`
	EnableVision bool `json:"enable_vision"`
	EnableAudit bool `json:"enable_audit"` // when true, one DailyRunItem is written per document
}

// ScanJobSchedule holds the wall-clock trigger configuration for a job.
type ScanJobSchedule struct {
	Type string `json:"type"` // DAILY, WEEKLY, MONTHLY, CUSTOM
	TimeOfDay string `json:"time_of_day"` // "HH:MM" in UTC
	DayOfWeek string `json:"day_of_week,omitempty"`
	CronExpr string `json:"cron_expr,omitempty"` // CUSTOM schedules only, robfig/cron standard syntax
	LookbackDays int `json:"lookback_days"` // [1,365], default 1
	TargetDate *time.Time `json:"target_date,omitempty"` // manual-run override
	LastRunDate *time.Time `json:"last_run_date,omitempty"`
}

// MatchDetail is one entry in a checkpoint's append-only match list.
type MatchDetail struct {
	FileName string `json:"file_name"`
	FIType string `json:"fi_type"`
	ValidationQuote string `json:"validation_quote"`
	Confidence float64 `json:"confidence"`
	Timestamp time.Time `json:"ts"`
}

// Checkpoint is the durable per-run cursor, inlined on ScanJob.
type Checkpoint struct {
	LastProcessedIndex int `json:"last_processed_index"`
	ProcessedCount int `json:"processed_count"`
	MatchesFound int `json:"matches_found"`
	LastProcessedKey string `json:"last_processed_key"`
	LastProcessedFile string `json:"last_processed_file"`
	ContinuationToken string `json:"continuation_token,omitempty"`
	ScanStartTS time.Time `json:"scan_start_ts"`
	ScanEndTS time.Time `json:"scan_end_ts"`
	TotalDocuments int `json:"total_documents"`
	IsResuming bool `json:"is_resuming"`
	TriggeredBy string `json:"triggered_by"`
	AllMatchDetails []MatchDetail `json:"all_match_details"`
}

// Reset zeroes a checkpoint in place, used on cancellation and on clean completion.
func (c *Checkpoint) Reset() {
	*c = Checkpoint{}
}

// ScanJob is the unit of work the scheduler enqueues and the worker drains.
type ScanJob struct {
	JobID string `json:"job_id"`
	DocumentType string `json:"document_type"`
	Status string `json:"status"`
	Config ScanJobConfig `json:"config"`
	Schedule ScanJobSchedule `json:"schedule"`
	Checkpoint Checkpoint `json:"checkpoint"`
	Statistics ScanStatistics `json:"statistics"`
	Customers []string `json:"customers"` // subscriber IDs
	LastError string `json:"last_error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ScanStatistics holds lifetime counters for a ScanJob.
type ScanStatistics struct {
	TotalRuns int `json:"total_runs"`
	TotalMatches int `json:"total_matches"`
	TotalDocs int `json:"total_docs_processed"`
	LastRunAt time.Time `json:"last_run_at"`
	LastSuccessAt time.Time `json:"last_success_at"`
}

// Subscriber receives batched match notifications for report types it subscribes to.
type Subscriber struct {
	ID string `json:"id"`
	Email string `json:"email"`
	Name string `json:"name"`
	SubscribedTypes []string `json:"subscribed_types"`
	Filters SubscriberFilters `json:"filters"`
	Active bool `json:"active"`
	LastEmailTS time.Time `json:"last_email_ts"`
	EmailCount int `json:"email_count"`
}

// SubscriberFilters narrows the set of projects a subscriber is notified about.
type SubscriberFilters struct {
	AllowedRegions []string `json:"allowed_regions"`
	AllowedSectors []string `json:"allowed_sectors"`
}

// Queue entry status constants — non-terminal states block re-admission of the same job_key.
const (
	QueueStatusPending = "pending"
	QueueStatusRunning = "running"
	QueueStatusCompleted = "completed"
	QueueStatusFailed = "failed"
	QueueStatusCancelled = "cancelled"
)

// NonTerminalQueueStatuses lists the statuses that block a new enqueue for the same job_key.
var NonTerminalQueueStatuses = []string{QueueStatusPending, QueueStatusRunning}

// QueueEntryPayload is the admission payload for a scan job run.
type QueueEntryPayload struct {
	JobID string `json:"job_id"`
	TargetDate *time.Time `json:"target_date,omitempty"`
	Force bool `json:"force,omitempty"`
}

// QueueEntry is one admission record in the job queue (C8).
type QueueEntry struct {
	ID string `json:"id"`
	JobKey string `json:"job_key"` // "scan:"+job_id
	Payload QueueEntryPayload `json:"payload"`
	Status string `json:"status"`
	Attempts int `json:"attempts"`
	MaxAttempts int `json:"max_attempts"`
	BackoffUntil time.Time `json:"backoff_until"`
	CreatedAt time.Time `json:"created_at"`
	StartedAt time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	Error string `json:"error,omitempty"`
}

// ProjectMetadata is fetched lazily per project id from the planning-metadata service.
type ProjectMetadata struct {
	PlanningID string `json:"planning_id"`
	PlanningTitle string `json:"planning_title"`
	PlanningStage string `json:"planning_stage"`
	PlanningCounty string `json:"planning_county"`
	PlanningSector string `json:"planning_sector"`
	PlanningRegion string `json:"planning_region"`
	BIIURL string `json:"bii_url"`
}

// MatchRecord is a confirmed classifier match, prior to subscriber enrichment.
type MatchRecord struct {
	JobID string `json:"job_id"`
	ObjectKey string `json:"object_key"`
	ProjectID string `json:"project_id"`
	FileName string `json:"file_name"`
	FIType string `json:"fi_type"`
	ValidationQuote string `json:"validation_quote"`
	Confidence float64 `json:"confidence"`
	Stage string `json:"stage"` // classifier stage that confirmed the match
	ExtractedAt time.Time `json:"extracted_at"`
}

// Delivery attempt status constants.
const (
	DeliveryStatusSent = "sent"
	DeliveryStatusFailed = "failed"
)

// DeliveryAttempt is a durable record of one notification send, whether it
// went to a subscriber, an operator progress update, or a run summary.
type DeliveryAttempt struct {
	ID string `json:"id"`
	JobID string `json:"job_id"`
	SubscriberID string `json:"subscriber_id,omitempty"` // empty for operator progress/summary mail
	Kind string `json:"kind"` // "batch", "progress", "summary"
	Status string `json:"status"`
	MatchCount int `json:"match_count"`
	Error string `json:"error,omitempty"`
	SentAt time.Time `json:"sent_at"`
}

// DailyRunItem is an optional per-document audit record, written when
// ScanJobConfig.EnableAudit is set ("Persisted state layout" names this
// record without detailing it; this is the supplemented definition).
type DailyRunItem struct {
	JobID string `json:"job_id"`
	RunDate string `json:"run_date"` // yyyy-mm-dd, the window date the document was scanned under
	ObjectKey string `json:"object_key"`
	Outcome string `json:"outcome"` // "matched", "rejected:<stage>", "skipped:<reason>", "timeout", "error"
	FIType string `json:"fi_type,omitempty"`
	ProcessedAt time.Time `json:"processed_at"`
}
