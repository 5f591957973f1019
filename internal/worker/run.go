package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"runtime"
	"time"

	"github.com/karlennis/fiscan/internal/common"
	"github.com/karlennis/fiscan/internal/interfaces"
	"github.com/karlennis/fiscan/internal/models"
	"github.com/karlennis/fiscan/internal/objectstore"
)

// documentOutcome is the typed result of processing one document, used to
// decide checkpoint bookkeeping and audit tagging without the caller
// inspecting error strings.
type documentOutcome struct {
	outcome string // matches models' DailyRunItem.Outcome values
	match *models.MatchRecord
}

const listPrefix = "planning-documents"

// executeEntry runs one queue entry's scan to completion, pause, or cancel.
func (g *Governor) executeEntry(ctx context.Context, entry *models.QueueEntry) error {
	job, err := g.jobs.Get(ctx, entry.Payload.JobID)
	if err != nil {
		return fmt.Errorf("failed to load job %s: %w", entry.Payload.JobID, err)
	}
	if job == nil {
		return fmt.Errorf("%w: job %s not found", common.ErrFatalConfig, entry.Payload.JobID)
	}

	resuming := job.Checkpoint.IsResuming
	if !resuming {
		start, end := computeWindow(job.Schedule, entry.Payload.TargetDate, time.Now())
		total, err := g.countDocuments(ctx, start, end)
		if err != nil {
			return fmt.Errorf("failed to count documents for job %s: %w", job.JobID, err)
		}
		job.Checkpoint = models.Checkpoint{
			ScanStartTS: start,
			ScanEndTS: end,
			TriggeredBy: triggeredByLabel(entry),
			TotalDocuments: total,
		}
	}

	job.Status = models.ScanJobStatusRunning
	if err := g.jobs.Save(ctx, job); err != nil {
		return fmt.Errorf("failed to mark job %s running: %w", job.JobID, err)
	}

	var batch []*models.MatchRecord
	checkpointEvery := g.config.GetCheckpointEvery()
	docTimeout := g.config.GetDocumentTimeout()

	outcome := g.lister.List(ctx, listPrefix, job.Checkpoint.ScanStartTS, job.Checkpoint.ScanEndTS,
		job.Checkpoint.ContinuationToken, job.Checkpoint.LastProcessedKey)

	var runErr error
	index := 0
	outcome(func(entryObj interfaces.ObjectEntry, yieldErr error) bool {
		if yieldErr != nil {
			runErr = fmt.Errorf("object listing failed: %w", yieldErr)
			return false
		}
		index++

		if cancelled, cancelErr := g.checkCancelled(ctx, job); cancelErr != nil {
			runErr = cancelErr
			return false
		} else if cancelled {
			return false
		}

		runtime.Gosched() // event-loop yield before each fetch

		result := g.processDocument(ctx, docTimeout, job, entryObj)
		if result.match != nil {
			batch = append(batch, result.match)
			job.Checkpoint.AllMatchDetails = append(job.Checkpoint.AllMatchDetails, models.MatchDetail{
				FileName: result.match.FileName,
				FIType: result.match.FIType,
				ValidationQuote: result.match.ValidationQuote,
				Confidence: result.match.Confidence,
				Timestamp: result.match.ExtractedAt,
			})
			job.Checkpoint.MatchesFound++
		}
		if g.audit != nil && job.Config.EnableAudit {
			g.saveAuditItem(ctx, job, entryObj.Key, result.outcome, result.match)
		}

		job.Checkpoint.ProcessedCount++
		job.Checkpoint.LastProcessedKey = entryObj.Key
		job.Checkpoint.LastProcessedFile = objectstore.FileNameFromKey(entryObj.Key)
		job.Checkpoint.ContinuationToken = g.lister.CurrentContinuationToken()

		mustFlush := job.Checkpoint.ProcessedCount <= 100 || job.Checkpoint.ProcessedCount%checkpointEvery == 0
		if mustFlush {
			if paused, pauseErr := g.checkpointBoundary(ctx, job, &batch); pauseErr != nil {
				runErr = pauseErr
				return false
			} else if paused {
				return false
			}
		}

		return true
	})

	if runErr != nil {
		return runErr
	}
	if job.Status == models.ScanJobStatusPaused || job.Status == models.ScanJobStatusActive {
		// Cancellation or pause already persisted state and returned; nothing
		// further to do for this run.
		return nil
	}

	return g.finishRun(ctx, job, batch)
}

// countDocuments walks the full [start, end) window once to size the run for
// progress and summary reporting. The main loop's walk reuses pages still held
// in the Lister's bounded page cache within its TTL; other pages are listed
// from the object store again.
func (g *Governor) countDocuments(ctx context.Context, start, end time.Time) (int, error) {
	count := 0
	var iterErr error
	seq := g.lister.List(ctx, listPrefix, start, end, "", "")
	seq(func(_ interfaces.ObjectEntry, yieldErr error) bool {
		if yieldErr != nil {
			iterErr = yieldErr
			return false
		}
		count++
		return true
	})
	if iterErr != nil {
		return 0, fmt.Errorf("object listing failed: %w", iterErr)
	}
	return count, nil
}

// checkCancelled re-reads the job's status; a CANCELLING status resets the
// checkpoint and transitions the job back to ACTIVE without a summary email.
func (g *Governor) checkCancelled(ctx context.Context, job *models.ScanJob) (bool, error) {
	fresh, err := g.jobs.Get(ctx, job.JobID)
	if err != nil {
		return false, fmt.Errorf("failed to re-read job %s for cancellation check: %w", job.JobID, err)
	}
	if fresh == nil || fresh.Status != models.ScanJobStatusCancelling {
		return false, nil
	}

	job.Checkpoint.Reset()
	job.Status = models.ScanJobStatusActive
	if err := g.jobs.Save(ctx, job); err != nil {
		return false, fmt.Errorf("failed to save cancelled job %s: %w", job.JobID, err)
	}
	if err := g.checkpoints.Clear(ctx, job.JobID); err != nil {
		g.logger.Warn().Err(err).Str("job_id", job.JobID).Msg("failed to clear checkpoint store on cancel")
	}
	g.logger.Info().Str("job_id", job.JobID).Msg("scan run cancelled")
	return true, nil
}

// checkpointBoundary flushes the checkpoint, dispatches the accumulated
// match batch, and checks the memory ceiling. Returns
// paused=true if the run must exit now.
func (g *Governor) checkpointBoundary(ctx context.Context, job *models.ScanJob, batch *[]*models.MatchRecord) (bool, error) {
	if err := g.checkpoints.Flush(ctx, job.JobID, job.Checkpoint); err != nil {
		return false, fmt.Errorf("failed to flush checkpoint for job %s: %w", job.JobID, err)
	}
	if err := g.jobs.Save(ctx, job); err != nil {
		return false, fmt.Errorf("failed to persist job %s at checkpoint boundary: %w", job.JobID, err)
	}

	if len(*batch) > 0 {
		g.dispatchBatch(ctx, job, *batch)
		*batch = (*batch)[:0]
	}

	rss := g.rss.rssMB()
	if rss > g.config.GetWarnRSSMB() && rss <= g.config.GetPauseRSSMB() {
		coolDown()
		rss = g.rss.rssMB()
	}
	if rss > g.config.GetPauseRSSMB() {
		job.Checkpoint.IsResuming = true
		job.Status = models.ScanJobStatusPaused
		if err := g.checkpoints.Flush(ctx, job.JobID, job.Checkpoint); err != nil {
			return false, fmt.Errorf("failed to flush checkpoint before pause: %w", err)
		}
		if err := g.jobs.Save(ctx, job); err != nil {
			return false, fmt.Errorf("failed to persist paused job %s: %w", job.JobID, err)
		}
		g.logger.Warn().Str("job_id", job.JobID).Int("rss_mb", rss).Msg("memory ceiling exceeded, pausing run")
		return true, nil
	}

	return false, nil
}

// finishRun dispatches the final batch and operator summary, updates the
// job's statistics, and clears the checkpoint on clean completion.
func (g *Governor) finishRun(ctx context.Context, job *models.ScanJob, batch []*models.MatchRecord) error {
	if len(batch) > 0 {
		g.dispatchBatch(ctx, job, batch)
	}

	job.Checkpoint.IsResuming = false
	job.Status = models.ScanJobStatusActive
	job.Statistics.TotalRuns++
	job.Statistics.TotalMatches += job.Checkpoint.MatchesFound
	job.Statistics.TotalDocs += job.Checkpoint.ProcessedCount
	job.Statistics.LastRunAt = time.Now()
	job.Statistics.LastSuccessAt = time.Now()

	allMatches := make([]interfaces.EnrichedMatch, 0, len(job.Checkpoint.AllMatchDetails))
	for _, d := range job.Checkpoint.AllMatchDetails {
		allMatches = append(allMatches, interfaces.EnrichedMatch{MatchRecord: models.MatchRecord{
			FileName: d.FileName, FIType: d.FIType, ValidationQuote: d.ValidationQuote,
			Confidence: d.Confidence, ExtractedAt: d.Timestamp,
		}})
	}

	if g.email != nil {
		summary := interfaces.SummaryPayload{
			JobName: job.JobID,
			Processed: job.Checkpoint.ProcessedCount,
			Total: job.Checkpoint.TotalDocuments,
			MatchesFound: job.Checkpoint.MatchesFound,
			Matches: allMatches,
		}
		if err := g.email.SendSummary(ctx, "", summary); err != nil {
			g.logger.Warn().Err(err).Str("job_id", job.JobID).Msg("failed to send run summary")
		}
	}

	job.Checkpoint.Reset()
	if err := g.jobs.Save(ctx, job); err != nil {
		return fmt.Errorf("failed to save completed job %s: %w", job.JobID, err)
	}
	if err := g.checkpoints.Clear(ctx, job.JobID); err != nil {
		g.logger.Warn().Err(err).Str("job_id", job.JobID).Msg("failed to clear checkpoint store on completion")
	}
	return nil
}

// dispatchBatch groups batch by subscriber and sends one email per
// subscriber with a surviving match set.
func (g *Governor) dispatchBatch(ctx context.Context, job *models.ScanJob, batch []*models.MatchRecord) {
	for _, m := range batch {
		if err := g.matches.Save(ctx, m); err != nil {
			g.logger.Warn().Err(err).Str("job_id", job.JobID).Str("object_key", m.ObjectKey).Msg("failed to persist match record")
		}
	}

	if g.matcher == nil || g.email == nil {
		return
	}

	subs, err := g.subscribers.List(ctx)
	if err != nil {
		g.logger.Warn().Err(err).Msg("failed to list subscribers for dispatch")
		return
	}

	groups, err := g.matcher.Group(ctx, batch, subs)
	if err != nil {
		g.logger.Warn().Err(err).Msg("failed to group matches by subscriber")
		return
	}

	for _, batchEmail := range groups {
		batchEmail.JobID = job.JobID
		batchEmail.GeneratedAt = time.Now()
		if err := g.email.SendBatch(ctx, batchEmail); err != nil {
			g.logger.Warn().Err(err).Str("subscriber", batchEmail.Subscriber.Email).Msg("failed to send match batch email")
		}
	}
}

// processDocument runs fetch→extract→classify for one object under a
// per-document timeout; timeouts and pipeline errors are tagged as
// non-matches rather than aborting the run.
func (g *Governor) processDocument(ctx context.Context, timeout time.Duration, job *models.ScanJob, entry interfaces.ObjectEntry) documentOutcome {
	docCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	format := extFromKey(entry.Key)
	projectID := objectstore.ProjectIDFromKey(entry.Key)
	fileName := objectstore.FileNameFromKey(entry.Key)

	fetched, err := g.fetcher.Fetch(docCtx, entry.Key)
	if err != nil {
		return g.classifyOutcome(err, "fetch")
	}
	var cleanupPath string
	if fetched.FilePath != "" {
		cleanupPath = fetched.FilePath
		defer removeTemp(cleanupPath, g.logger)
	}

	extracted, err := g.extractor.Extract(docCtx, fetched.Data, fetched.FilePath, format)
	if err != nil {
		return g.classifyOutcome(err, "extract")
	}
	if !extracted.OK {
		return documentOutcome{outcome: "skipped:" + extracted.Reason}
	}

	result, stage, err := g.classifier.Classify(docCtx, fileName, extracted.Text, job.DocumentType, projectID)
	if err != nil {
		if errors.Is(docCtx.Err(), context.DeadlineExceeded) {
			return documentOutcome{outcome: "timeout"}
		}
		g.logger.Warn().Err(err).Str("key", entry.Key).Str("stage", stage).Msg("classification failed")
		return documentOutcome{outcome: "error"}
	}

	confident := job.Config.ConfidenceThreshold <= 0 || result.Confidence >= job.Config.ConfidenceThreshold
	if !result.IsFI || !result.MatchesType || !confident {
		return documentOutcome{outcome: "rejected:" + stage}
	}

	return documentOutcome{
		outcome: "matched",
		match: &models.MatchRecord{
			JobID: job.JobID,
			ObjectKey: entry.Key,
			ProjectID: projectID,
			FileName: fileName,
			FIType: job.DocumentType,
			ValidationQuote: result.ValidationQuote,
			Confidence: result.Confidence,
			Stage: stage,
			ExtractedAt: time.Now(),
		},
	}
}

func (g *Governor) classifyOutcome(err error, step string) documentOutcome {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return documentOutcome{outcome: "timeout"}
	case errors.Is(err, common.ErrOversize):
		return documentOutcome{outcome: "skipped:oversize"}
	case errors.Is(err, common.ErrUnsupportedExtension):
		return documentOutcome{outcome: "skipped:unsupported_extension"}
	case errors.Is(err, common.ErrCorrupt):
		return documentOutcome{outcome: "skipped:corrupt_document"}
	default:
		g.logger.Warn().Err(err).Str("step", step).Msg("document processing step failed")
		return documentOutcome{outcome: "error"}
	}
}

func (g *Governor) saveAuditItem(ctx context.Context, job *models.ScanJob, key, outcome string, match *models.MatchRecord) {
	item := &models.DailyRunItem{
		JobID: job.JobID,
		RunDate: job.Checkpoint.ScanStartTS.Format("2006-01-02"),
		ObjectKey: key,
		Outcome: outcome,
		ProcessedAt: time.Now(),
	}
	if match != nil {
		item.FIType = match.FIType
	}
	if err := g.audit.Save(ctx, item); err != nil {
		g.logger.Warn().Err(err).Str("job_id", job.JobID).Str("key", key).Msg("failed to persist audit item")
	}
}

func triggeredByLabel(entry *models.QueueEntry) string {
	if entry.Payload.Force {
		return "manual"
	}
	return "scheduler"
}

func extFromKey(key string) string {
	ext := path.Ext(key)
	if len(ext) > 1 {
		return ext[1:]
	}
	return ext
}

func removeTemp(path string, logger *common.Logger) {
	if err := os.Remove(path); err != nil {
		logger.Debug().Err(err).Str("path", path).Msg("failed to remove temp fetch file")
	}
}
