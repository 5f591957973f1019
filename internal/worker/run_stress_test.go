package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/karlennis/fiscan/internal/classifier"
	"github.com/karlennis/fiscan/internal/common"
	"github.com/karlennis/fiscan/internal/interfaces"
	"github.com/karlennis/fiscan/internal/matcher"
	"github.com/karlennis/fiscan/internal/models"
)

// Stress tests exercise Governor.Start's concurrent processors against an
// in-memory queue with the same claim semantics as the real store, modeled
// on jobmanager's TestStress_ConcurrentProcessors.

// fakeQueueStore is a mutex-protected in-memory QueueStore. Dequeue mirrors
// the real store's claim-under-lock behavior so double-claims are a test bug,
// not a quirk of the fake.
type fakeQueueStore struct {
	mu      sync.Mutex
	entries map[string]*models.QueueEntry
}

func newFakeQueueStore() *fakeQueueStore {
	return &fakeQueueStore{entries: make(map[string]*models.QueueEntry)}
}

func (f *fakeQueueStore) Enqueue(ctx context.Context, entry *models.QueueEntry) (*models.QueueEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if entry.ID == "" {
		entry.ID = entry.JobKey
	}
	if entry.Status == "" {
		entry.Status = models.QueueStatusPending
	}
	f.entries[entry.ID] = entry
	return entry, nil
}

func (f *fakeQueueStore) Dequeue(ctx context.Context) (*models.QueueEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.Status == models.QueueStatusPending && e.BackoffUntil.Before(time.Now()) {
			e.Status = models.QueueStatusRunning
			e.Attempts++
			e.StartedAt = time.Now()
			return e, nil
		}
	}
	return nil, nil
}

func (f *fakeQueueStore) Complete(ctx context.Context, id string, entryErr error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[id]
	if !ok {
		return fmt.Errorf("no such entry %s", id)
	}
	e.Status = models.QueueStatusCompleted
	e.CompletedAt = time.Now()
	if entryErr != nil {
		e.Status = models.QueueStatusFailed
		e.Error = entryErr.Error()
	}
	return nil
}

func (f *fakeQueueStore) Retry(ctx context.Context, id string, backoff time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[id]
	if !ok {
		return fmt.Errorf("no such entry %s", id)
	}
	e.Status = models.QueueStatusPending
	e.BackoffUntil = time.Now().Add(backoff)
	return nil
}

func (f *fakeQueueStore) Cancel(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e, ok := f.entries[id]; ok {
		e.Status = models.QueueStatusCancelled
	}
	return nil
}

func (f *fakeQueueStore) HasActiveEntry(ctx context.Context, jobKey string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.JobKey == jobKey && (e.Status == models.QueueStatusPending || e.Status == models.QueueStatusRunning) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeQueueStore) ListPending(ctx context.Context, limit int) ([]*models.QueueEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.QueueEntry
	for _, e := range f.entries {
		if e.Status == models.QueueStatusPending {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeQueueStore) ResetOrphanedRunning(ctx context.Context) (int, error) {
	return 0, nil
}

func (f *fakeQueueStore) pendingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.entries {
		if e.Status == models.QueueStatusPending || e.Status == models.QueueStatusRunning {
			n++
		}
	}
	return n
}

// fakeJobStore hands back one pre-seeded ScanJob per JobID. List is invoked on
// fakeEmptyLister, so no objects are enumerated.
type fakeJobStore struct {
	mu   sync.Mutex
	jobs map[string]*models.ScanJob
}

func newFakeJobStore(ids []string) *fakeJobStore {
	s := &fakeJobStore{jobs: make(map[string]*models.ScanJob)}
	for _, id := range ids {
		s.jobs[id] = &models.ScanJob{
			JobID:        id,
			DocumentType: models.DocTypeAcoustic,
			Status:       models.ScanJobStatusActive,
			Schedule:     models.ScanJobSchedule{Type: models.ScheduleDaily},
		}
	}
	return s
}

func (f *fakeJobStore) Get(ctx context.Context, jobID string) (*models.ScanJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[jobID]
	if !ok {
		return nil, nil
	}
	cp := *j
	return &cp, nil
}

func (f *fakeJobStore) Save(ctx context.Context, job *models.ScanJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *job
	f.jobs[job.JobID] = &cp
	return nil
}

func (f *fakeJobStore) List(ctx context.Context) ([]*models.ScanJob, error) { return nil, nil }
func (f *fakeJobStore) Delete(ctx context.Context, jobID string) error     { return nil }

// fakeCheckpointStore, fakeMatchStore, fakeSubscriberStore, fakeAuditStore,
// fakeDeliveryStore are no-op sinks; the stress test cares about queue
// claim uniqueness, not persistence fidelity.
type fakeCheckpointStore struct{}

func (fakeCheckpointStore) Load(ctx context.Context, jobID string) (models.Checkpoint, error) {
	return models.Checkpoint{}, nil
}
func (fakeCheckpointStore) Flush(ctx context.Context, jobID string, cp models.Checkpoint) error {
	return nil
}
func (fakeCheckpointStore) Clear(ctx context.Context, jobID string) error { return nil }

type fakeMatchStore struct{ count atomic.Int64 }

func (f *fakeMatchStore) Save(ctx context.Context, m *models.MatchRecord) error {
	f.count.Add(1)
	return nil
}
func (f *fakeMatchStore) ListByJob(ctx context.Context, jobID string) ([]*models.MatchRecord, error) {
	return nil, nil
}

type fakeSubscriberStore struct{}

func (fakeSubscriberStore) List(ctx context.Context) ([]*models.Subscriber, error) { return nil, nil }
func (fakeSubscriberStore) Get(ctx context.Context, id string) (*models.Subscriber, error) {
	return nil, nil
}
func (fakeSubscriberStore) Save(ctx context.Context, sub *models.Subscriber) error { return nil }

type fakeAuditStore struct{}

func (fakeAuditStore) Save(ctx context.Context, item *models.DailyRunItem) error { return nil }

type fakeDeliveryStore struct{}

func (fakeDeliveryStore) Save(ctx context.Context, d *models.DeliveryAttempt) error { return nil }
func (fakeDeliveryStore) ListByJob(ctx context.Context, jobID string) ([]*models.DeliveryAttempt, error) {
	return nil, nil
}

// fakeEmptyLister enumerates nothing, so executeEntry falls straight through
// to finishRun without exercising fetch/extract/classify — the stress here
// is on queue claim uniqueness under concurrent processors, not the document
// pipeline.
type fakeEmptyLister struct{}

func (fakeEmptyLister) List(ctx context.Context, prefix string, startTS, endTS time.Time, continuationToken, lastProcessedKey string) func(yield func(interfaces.ObjectEntry, error) bool) {
	return func(yield func(interfaces.ObjectEntry, error) bool) {}
}
func (fakeEmptyLister) CurrentContinuationToken() string { return "" }

type fakeFetcher struct{}

func (fakeFetcher) Fetch(ctx context.Context, key string) (interfaces.FetchResult, error) {
	return interfaces.FetchResult{}, nil
}

type fakeExtractor struct{}

func (fakeExtractor) Extract(ctx context.Context, data []byte, filePath, format string) (interfaces.ExtractResult, error) {
	return interfaces.ExtractResult{OK: true, Text: "stress test document body"}, nil
}

type fakeLLMClassifier struct{}

func (fakeLLMClassifier) CheapFilter(ctx context.Context, textPrefix string) (bool, error) {
	return false, nil
}
func (fakeLLMClassifier) ClassifyFI(ctx context.Context, text, targetType string) (interfaces.ClassifyResult, error) {
	return interfaces.ClassifyResult{}, nil
}

type fakeMetadataClient struct{}

func (fakeMetadataClient) GetProjectMetadata(ctx context.Context, projectID string) (*models.ProjectMetadata, error) {
	return &models.ProjectMetadata{PlanningID: projectID}, nil
}

type fakeEmailClient struct{}

func (fakeEmailClient) SendBatch(ctx context.Context, batch interfaces.EmailBatch) error { return nil }
func (fakeEmailClient) SendProgress(ctx context.Context, adminAddr string, p interfaces.ProgressPayload) error {
	return nil
}
func (fakeEmailClient) SendSummary(ctx context.Context, adminAddr string, s interfaces.SummaryPayload) error {
	return nil
}

// TestStress_ConcurrentProcessors enqueues many distinct job_keys and starts
// several processor goroutines draining them, asserting every entry is
// completed exactly once and none are left claimed-but-unfinished.
func TestStress_ConcurrentProcessors(t *testing.T) {
	const jobs = 20
	jobIDs := make([]string, jobs)
	for i := range jobIDs {
		jobIDs[i] = fmt.Sprintf("job-%d", i)
	}

	queue := newFakeQueueStore()
	for _, id := range jobIDs {
		if _, err := queue.Enqueue(context.Background(), &models.QueueEntry{
			ID:      id,
			JobKey:  "scan:" + id,
			Payload: models.QueueEntryPayload{JobID: id},
		}); err != nil {
			t.Fatalf("seed enqueue failed: %v", err)
		}
	}

	pipeline, err := classifier.New(fakeLLMClassifier{}, 0, 0, 0, common.NewSilentLogger())
	if err != nil {
		t.Fatalf("classifier.New failed: %v", err)
	}
	m := matcher.New(fakeMetadataClient{}, common.NewSilentLogger())

	g, err := New(Deps{
		Jobs:        newFakeJobStore(jobIDs),
		Queue:       queue,
		Checkpoints: fakeCheckpointStore{},
		Matches:     &fakeMatchStore{},
		Subscribers: fakeSubscriberStore{},
		Deliveries:  fakeDeliveryStore{},
		Audit:       fakeAuditStore{},
		Lister:      fakeEmptyLister{},
		Fetcher:     fakeFetcher{},
		Extractor:   fakeExtractor{},
		Classifier:  pipeline,
		Matcher:     m,
		Email:       fakeEmailClient{},
	}, common.WorkerConfig{Concurrency: 4, CheckpointEvery: 10}, common.NewSilentLogger())
	if err != nil {
		t.Fatalf("New governor failed: %v", err)
	}

	g.Start(context.Background())
	defer g.Stop()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for queue to drain, %d entries still pending/running", queue.pendingCount())
		default:
			if queue.pendingCount() == 0 {
				goto drained
			}
			time.Sleep(20 * time.Millisecond)
		}
	}
drained:

	queue.mu.Lock()
	defer queue.mu.Unlock()
	for id, e := range queue.entries {
		if e.Status != models.QueueStatusCompleted {
			t.Errorf("entry %s ended in status %q, want %q", id, e.Status, models.QueueStatusCompleted)
		}
		if e.Attempts != 1 {
			t.Errorf("entry %s claimed %d times, want exactly 1", id, e.Attempts)
		}
	}
}
