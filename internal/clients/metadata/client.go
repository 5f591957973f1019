// Package metadata fetches project metadata from the planning-metadata
// enrichment service for the Subscriber Matcher (C5).
package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/karlennis/fiscan/internal/common"
	"github.com/karlennis/fiscan/internal/interfaces"
	"github.com/karlennis/fiscan/internal/models"
)

// Client calls the planning-metadata service's HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *common.Logger
}

// New creates a Client.
func New(baseURL string, timeout time.Duration, logger *common.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// GetProjectMetadata fetches metadata for projectID, returning nil if the
// service has no record (404).
func (c *Client) GetProjectMetadata(ctx context.Context, projectID string) (*models.ProjectMetadata, error) {
	endpoint := fmt.Sprintf("%s/projects/%s", c.baseURL, url.PathEscape(projectID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build metadata request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: metadata request for %s: %v", common.ErrTransient, projectID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: metadata service returned %d for %s", common.ErrTransient, resp.StatusCode, projectID)
	}

	var meta models.ProjectMetadata
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return nil, fmt.Errorf("failed to decode metadata response: %w", err)
	}
	return &meta, nil
}

var _ interfaces.MetadataClient = (*Client)(nil)
