package matcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/karlennis/fiscan/internal/common"
	"github.com/karlennis/fiscan/internal/models"
)

type fakeMetadataClient struct {
	byProject map[string]*models.ProjectMetadata
	err       error
}

func (f *fakeMetadataClient) GetProjectMetadata(ctx context.Context, projectID string) (*models.ProjectMetadata, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byProject[projectID], nil
}

func newTestMatcher(md *fakeMetadataClient) *Matcher {
	return New(md, common.NewSilentLogger())
}

func TestGroup_FailsClosedWithoutMetadataWhenSubscriberHasFilters(t *testing.T) {
	md := &fakeMetadataClient{byProject: map[string]*models.ProjectMetadata{}}
	m := newTestMatcher(md)

	matches := []*models.MatchRecord{
		{ProjectID: "P1", FIType: "acoustic", ExtractedAt: time.Now()},
	}
	subs := []*models.Subscriber{
		{ID: "s1", Active: true, SubscribedTypes: []string{"acoustic"},
			Filters: models.SubscriberFilters{AllowedRegions: []string{"Dublin"}}},
	}

	batches, err := m.Group(context.Background(), matches, subs)
	if err != nil {
		t.Fatalf("Group returned error: %v", err)
	}
	if len(batches) != 0 {
		t.Fatalf("expected no batches when metadata is missing and subscriber has an active filter, got %d", len(batches))
	}
}

func TestGroup_PassesThroughWithoutMetadataWhenNoFilters(t *testing.T) {
	md := &fakeMetadataClient{byProject: map[string]*models.ProjectMetadata{}}
	m := newTestMatcher(md)

	matches := []*models.MatchRecord{
		{ProjectID: "P1", FIType: "acoustic", ExtractedAt: time.Now()},
	}
	subs := []*models.Subscriber{
		{ID: "s1", Active: true, SubscribedTypes: []string{"acoustic"}},
	}

	batches, err := m.Group(context.Background(), matches, subs)
	if err != nil {
		t.Fatalf("Group returned error: %v", err)
	}
	if len(batches) != 1 || len(batches[0].Matches) != 1 {
		t.Fatalf("expected one batch with one match, got %+v", batches)
	}
}

func TestGroup_RegionAndSectorFiltering(t *testing.T) {
	md := &fakeMetadataClient{byProject: map[string]*models.ProjectMetadata{
		"P1": {PlanningID: "PL1", PlanningCounty: "Dublin", PlanningSector: "Residential"},
		"P2": {PlanningID: "PL2", PlanningCounty: "Cork", PlanningSector: "Residential"},
	}}
	m := newTestMatcher(md)

	matches := []*models.MatchRecord{
		{ProjectID: "P1", FIType: "acoustic", ExtractedAt: time.Now()},
		{ProjectID: "P2", FIType: "acoustic", ExtractedAt: time.Now()},
	}
	subs := []*models.Subscriber{
		{ID: "s1", Active: true, SubscribedTypes: []string{"acoustic"},
			Filters: models.SubscriberFilters{AllowedRegions: []string{"dublin"}}},
	}

	batches, err := m.Group(context.Background(), matches, subs)
	if err != nil {
		t.Fatalf("Group returned error: %v", err)
	}
	if len(batches) != 1 || len(batches[0].Matches) != 1 {
		t.Fatalf("expected one batch with one match (Dublin only), got %+v", batches)
	}
	if batches[0].Matches[0].ProjectID != "P1" {
		t.Errorf("expected surviving match to be P1, got %s", batches[0].Matches[0].ProjectID)
	}
}

func TestGroup_TypeSubscriptionIsCaseInsensitive(t *testing.T) {
	md := &fakeMetadataClient{byProject: map[string]*models.ProjectMetadata{}}
	m := newTestMatcher(md)

	matches := []*models.MatchRecord{{ProjectID: "P1", FIType: "Acoustic", ExtractedAt: time.Now()}}
	subs := []*models.Subscriber{{ID: "s1", Active: true, SubscribedTypes: []string{"ACOUSTIC"}}}

	batches, err := m.Group(context.Background(), matches, subs)
	if err != nil {
		t.Fatalf("Group returned error: %v", err)
	}
	if len(batches) != 1 {
		t.Fatalf("expected subscription match despite case difference, got %d batches", len(batches))
	}
}

func TestGroup_InactiveSubscriberExcluded(t *testing.T) {
	md := &fakeMetadataClient{byProject: map[string]*models.ProjectMetadata{}}
	m := newTestMatcher(md)

	matches := []*models.MatchRecord{{ProjectID: "P1", FIType: "acoustic", ExtractedAt: time.Now()}}
	subs := []*models.Subscriber{{ID: "s1", Active: false, SubscribedTypes: []string{"acoustic"}}}

	batches, err := m.Group(context.Background(), matches, subs)
	if err != nil {
		t.Fatalf("Group returned error: %v", err)
	}
	if len(batches) != 0 {
		t.Errorf("inactive subscriber must never receive a batch, got %d", len(batches))
	}
}

func TestGroup_EmptySubscribedTypesMatchesNothing(t *testing.T) {
	md := &fakeMetadataClient{byProject: map[string]*models.ProjectMetadata{}}
	m := newTestMatcher(md)

	matches := []*models.MatchRecord{{ProjectID: "P1", FIType: "acoustic", ExtractedAt: time.Now()}}
	subs := []*models.Subscriber{{ID: "s1", Active: true}}

	batches, err := m.Group(context.Background(), matches, subs)
	if err != nil {
		t.Fatalf("Group returned error: %v", err)
	}
	if len(batches) != 0 {
		t.Fatalf("subscriber with no SubscribedTypes must match nothing, got %d batches", len(batches))
	}
}

func TestGroup_MetadataFetchErrorDoesNotAbortRun(t *testing.T) {
	md := &fakeMetadataClient{err: errors.New("metadata service unavailable")}
	m := newTestMatcher(md)

	matches := []*models.MatchRecord{{ProjectID: "P1", FIType: "acoustic", ExtractedAt: time.Now()}}
	subs := []*models.Subscriber{{ID: "s1", Active: true, SubscribedTypes: []string{"acoustic"}}}

	batches, err := m.Group(context.Background(), matches, subs)
	if err != nil {
		t.Fatalf("Group must not propagate a per-project metadata fetch error: %v", err)
	}
	if len(batches) != 1 {
		t.Fatalf("expected the match to still pass through (no filters set), got %d batches", len(batches))
	}
}
