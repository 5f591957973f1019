package surrealdb

import (
	"context"
	"sync"
	"testing"

	"github.com/karlennis/fiscan/internal/models"
)

// TestStress_Enqueue_ConcurrentSameJobKey fires many concurrent Enqueue calls
// for the same job_key and asserts exactly one non-terminal entry survives —
// the invariant the admission transaction in Enqueue exists to protect.
func TestStress_Enqueue_ConcurrentSameJobKey(t *testing.T) {
	db := testDB(t)
	store := NewScanQueueStore(db, testLogger())
	ctx := context.Background()

	const workers = 20
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, err := store.Enqueue(ctx, &models.QueueEntry{
				JobKey: "scan:stress-job",
				Payload: models.QueueEntryPayload{JobID: "stress-job"},
			})
			if err != nil {
				t.Errorf("Enqueue returned error: %v", err)
			}
		}()
	}
	wg.Wait()

	pending, err := store.ListPending(ctx, 100)
	if err != nil {
		t.Fatalf("ListPending returned error: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected exactly one admitted entry for job_key, got %d", len(pending))
	}
}

// TestStress_Dequeue_ConcurrentWorkers fires many concurrent Dequeue calls
// against a small fixed set of pending entries and asserts every claimed entry
// was claimed exactly once — no worker observes the same entry twice.
func TestStress_Dequeue_ConcurrentWorkers(t *testing.T) {
	db := testDB(t)
	store := NewScanQueueStore(db, testLogger())
	ctx := context.Background()

	const entries = 15
	// Enqueue admits only one non-terminal entry per job_key, so each seeded
	// row needs a distinct job_key to actually produce "entries" pending rows.
	for i := 0; i < entries; i++ {
		if _, err := store.Enqueue(ctx, &models.QueueEntry{
			JobKey:  "scan:stress-dequeue-" + string(rune('a'+i)),
			Payload: models.QueueEntryPayload{JobID: "stress-dequeue"},
		}); err != nil {
			t.Fatalf("seed Enqueue returned error: %v", err)
		}
	}

	const workers = 30
	var wg sync.WaitGroup
	var mu sync.Mutex
	claimed := make(map[string]int)

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			entry, err := store.Dequeue(ctx)
			if err != nil {
				t.Errorf("Dequeue returned error: %v", err)
				return
			}
			if entry == nil {
				return
			}
			mu.Lock()
			claimed[entry.ID]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	for id, count := range claimed {
		if count != 1 {
			t.Errorf("entry %s claimed %d times, want exactly 1", id, count)
		}
	}
}
