// Package ocr calls the black-box OCR service used as C3's fallback for
// image-only PDFs: ocr(pdf_path, max_pages) -> string.
package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/karlennis/fiscan/internal/common"
	"github.com/karlennis/fiscan/internal/interfaces"
)

// Client uploads a PDF to the OCR service and returns its concatenated text.
type Client struct {
	baseURL string
	http *http.Client
	logger *common.Logger
}

// New creates a Client.
func New(baseURL string, timeout time.Duration, logger *common.Logger) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

type ocrResponse struct {
	Text string `json:"text"`
}

// OCR rasterises and recognizes up to maxPages of the PDF at pdfPath.
func (c *Client) OCR(ctx context.Context, pdfPath string, maxPages int) (string, error) {
	data, err := os.ReadFile(pdfPath)
	if err != nil {
		return "", fmt.Errorf("failed to read pdf for ocr: %w", err)
	}

	endpoint := fmt.Sprintf("%s/ocr?max_pages=%d&filename=%s", c.baseURL, maxPages, filepath.Base(pdfPath))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to build ocr request: %w", err)
	}
	req.Header.Set("Content-Type", "application/pdf")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: ocr request: %v", common.ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: ocr service returned %d", common.ErrTransient, resp.StatusCode)
	}

	var out ocrResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode ocr response: %w", err)
	}
	return out.Text, nil
}

var _ interfaces.OCRClient = (*Client)(nil)
