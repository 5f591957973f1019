// Package worker implements C10: the worker and resource governor that
// drains the job queue and drives the per-document lease→checkpoint→list→
// fetch→extract→classify loop under a memory ceiling.
package worker

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/karlennis/fiscan/internal/classifier"
	"github.com/karlennis/fiscan/internal/common"
	"github.com/karlennis/fiscan/internal/interfaces"
	"github.com/karlennis/fiscan/internal/matcher"
)

// Governor drains ScanQueueStore and executes each admitted run.
type Governor struct {
	jobs        interfaces.ScanJobStore
	queue       interfaces.QueueStore
	checkpoints interfaces.CheckpointStore
	matches     interfaces.MatchStore
	subscribers interfaces.SubscriberStore
	deliveries  interfaces.DeliveryStore
	audit       interfaces.AuditStore

	lister     interfaces.ObjectLister
	fetcher    interfaces.ObjectFetcher
	extractor  interfaces.Extractor
	classifier *classifier.Pipeline
	matcher    *matcher.Matcher
	email      interfaces.EmailClient

	config common.WorkerConfig
	rss    *rssReader
	logger *common.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Deps bundles the Governor's collaborators.
type Deps struct {
	Jobs        interfaces.ScanJobStore
	Queue       interfaces.QueueStore
	Checkpoints interfaces.CheckpointStore
	Matches     interfaces.MatchStore
	Subscribers interfaces.SubscriberStore
	Deliveries  interfaces.DeliveryStore
	Audit       interfaces.AuditStore
	Lister      interfaces.ObjectLister
	Fetcher     interfaces.ObjectFetcher
	Extractor   interfaces.Extractor
	Classifier  *classifier.Pipeline
	Matcher     *matcher.Matcher
	Email       interfaces.EmailClient
}

// New creates a Governor.
func New(deps Deps, config common.WorkerConfig, logger *common.Logger) (*Governor, error) {
	rss, err := newRSSReader()
	if err != nil {
		return nil, fmt.Errorf("failed to create rss reader: %w", err)
	}
	return &Governor{
		jobs:        deps.Jobs,
		queue:       deps.Queue,
		checkpoints: deps.Checkpoints,
		matches:     deps.Matches,
		subscribers: deps.Subscribers,
		deliveries:  deps.Deliveries,
		audit:       deps.Audit,
		lister:      deps.Lister,
		fetcher:     deps.Fetcher,
		extractor:   deps.Extractor,
		classifier:  deps.Classifier,
		matcher:     deps.Matcher,
		email:       deps.Email,
		config:      config,
		rss:         rss,
		logger:      logger,
	}, nil
}

// safeGo launches a goroutine with panic recovery so one runner's crash
// never takes down the whole worker process.
func (g *Governor) safeGo(name string, fn func()) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				g.logger.Error().
					Str("goroutine", name).
					Str("panic", fmt.Sprintf("%v", r)).
					Str("stack", string(debug.Stack())).
					Msg("recovered from panic in worker goroutine")
			}
		}()
		fn()
	}()
}

// Start launches GetConcurrency() processor goroutines draining the queue.
func (g *Governor) Start(ctx context.Context) {
	if g.cancel != nil {
		g.Stop()
	}
	ctx, cancel := context.WithCancel(ctx)
	g.cancel = cancel

	if n, err := g.queue.ResetOrphanedRunning(ctx); err != nil {
		g.logger.Warn().Err(err).Msg("failed to reset orphaned running queue entries")
	} else if n > 0 {
		g.logger.Info().Int("count", n).Msg("reset orphaned running queue entries to pending")
	}

	conc := g.config.GetConcurrency()
	for i := 0; i < conc; i++ {
		name := fmt.Sprintf("worker-%d", i)
		g.safeGo(name, func() { g.processLoop(ctx) })
	}
	g.logger.Info().Int("concurrency", conc).Msg("worker governor started")
}

// Stop cancels all processor loops and waits for them to exit.
func (g *Governor) Stop() {
	if g.cancel != nil {
		g.cancel()
		g.cancel = nil
	}
	g.wg.Wait()
	g.logger.Info().Msg("worker governor stopped")
}

// processLoop continuously dequeues and executes queue entries.
func (g *Governor) processLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		entry, err := g.queue.Dequeue(ctx)
		if err != nil {
			g.logger.Warn().Err(err).Msg("dequeue error")
			if !sleepOrDone(ctx, time.Second) {
				return
			}
			continue
		}
		if entry == nil {
			if !sleepOrDone(ctx, time.Second) {
				return
			}
			continue
		}

		start := time.Now()
		runErr := g.executeEntry(ctx, entry)
		duration := time.Since(start)

		if runErr != nil {
			g.logger.Warn().Str("job_id", entry.Payload.JobID).Err(runErr).
				Dur("duration", duration).Msg("scan run failed")
			backoff := g.config.GetRetryBackoffStart()
			for i := 1; i < entry.Attempts; i++ {
				backoff *= 2
			}
			if err := g.queue.Retry(ctx, entry.ID, backoff); err != nil {
				g.logger.Warn().Err(err).Str("entry_id", entry.ID).Msg("failed to retry queue entry")
			}
			continue
		}

		if err := g.queue.Complete(ctx, entry.ID, nil); err != nil {
			g.logger.Warn().Err(err).Str("entry_id", entry.ID).Msg("failed to complete queue entry")
		}
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
