// Package matcher implements C5: groups confirmed matches by subscriber,
// enriching each with project metadata and applying the subscriber's region
// and sector filters.
package matcher

import (
	"context"
	"sort"
	"strings"

	"github.com/karlennis/fiscan/internal/common"
	"github.com/karlennis/fiscan/internal/interfaces"
	"github.com/karlennis/fiscan/internal/models"
)

// Matcher enriches and filters matches per subscriber.
type Matcher struct {
	metadata interfaces.MetadataClient
	logger *common.Logger
}

// New creates a Matcher.
func New(metadata interfaces.MetadataClient, logger *common.Logger) *Matcher {
	return &Matcher{metadata: metadata, logger: logger}
}

// Group fetches project metadata for each distinct project id among matches,
// then returns the subset of subscribers with a non-empty surviving match
// set, each paired with its enriched, filtered matches.
func (m *Matcher) Group(ctx context.Context, matches []*models.MatchRecord, subscribers []*models.Subscriber) ([]interfaces.EmailBatch, error) {
	enriched := make([]interfaces.EnrichedMatch, 0, len(matches))
	metaCache := make(map[string]*models.ProjectMetadata)
	for _, match := range matches {
		meta, err := m.projectMetadata(ctx, metaCache, match.ProjectID)
		if err != nil {
			m.logger.Warn().Err(err).Str("project_id", match.ProjectID).Msg("failed to fetch project metadata")
		}
		em := interfaces.EnrichedMatch{MatchRecord: *match}
		if meta != nil {
			em.Project = *meta
		}
		enriched = append(enriched, em)
	}

	var batches []interfaces.EmailBatch
	for _, sub := range subscribers {
		if !sub.Active {
			continue
		}
		subMatches := m.filterForSubscriber(sub, enriched)
		if len(subMatches) == 0 {
			continue
		}
		batches = append(batches, interfaces.EmailBatch{
			Subscriber: *sub,
			Matches: subMatches,
			ReportTypes: sub.SubscribedTypes,
		})
	}

	return batches, nil
}

func (m *Matcher) projectMetadata(ctx context.Context, metaCache map[string]*models.ProjectMetadata, projectID string) (*models.ProjectMetadata, error) {
	if cached, ok := metaCache[projectID]; ok {
		return cached, nil
	}
	if m.metadata == nil {
		return nil, nil
	}
	meta, err := m.metadata.GetProjectMetadata(ctx, projectID)
	if err != nil {
		metaCache[projectID] = nil
		return nil, err
	}
	metaCache[projectID] = meta
	return meta, nil
}

// filterForSubscriber applies the subscriber's type subscription, region and
// sector filters, fail-closed when metadata is missing and a filter is set.
func (m *Matcher) filterForSubscriber(sub *models.Subscriber, enriched []interfaces.EnrichedMatch) []interfaces.EnrichedMatch {
	subscribed := make(map[string]bool, len(sub.SubscribedTypes))
	for _, t := range sub.SubscribedTypes {
		subscribed[strings.ToLower(t)] = true
	}

	hasFilters := len(sub.Filters.AllowedRegions) > 0 || len(sub.Filters.AllowedSectors) > 0

	var out []interfaces.EnrichedMatch
	for _, em := range enriched {
		// An empty SubscribedTypes means the subscriber matches nothing, not everything.
		if !subscribed[strings.ToLower(em.FIType)] {
			continue
		}

		hasMetadata := em.Project.PlanningID != ""
		if !hasMetadata {
			if hasFilters {
				continue // fail-closed: no metadata, but subscriber has an active filter
			}
			out = append(out, em)
			continue
		}

		if !matchesAllowed(sub.Filters.AllowedRegions, em.Project.PlanningCounty) {
			continue
		}
		if !matchesAllowed(sub.Filters.AllowedSectors, em.Project.PlanningSector) {
			continue
		}
		out = append(out, em)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ExtractedAt.Before(out[j].ExtractedAt) })
	return out
}

// matchesAllowed reports whether value is in allowed (case-insensitive,
// trimmed), or whether allowed is empty (no restriction).
func matchesAllowed(allowed []string, value string) bool {
	if len(allowed) == 0 {
		return true
	}
	value = strings.ToLower(strings.TrimSpace(value))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimSpace(a)) == value {
			return true
		}
	}
	return false
}
