// Package llmclient adapts the Gemini API for the classifier cascade (C4):
// a cheap yes/no filter and a structured-output FI/report-type classification
// call, both using deterministic decoding.
package llmclient

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"
	"golang.org/x/time/rate"

	"github.com/karlennis/fiscan/internal/common"
	"github.com/karlennis/fiscan/internal/interfaces"
)

const (
	DefaultModel = "gemini-3-flash-preview"
	zeroTemp     = float32(0)
	defaultRateLimitPerSec = 5
)

// Client implements interfaces.LLMClassifier against the Gemini API.
type Client struct {
	client  *genai.Client
	model   string
	limiter *rate.Limiter
	logger  *common.Logger
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithModel sets the model to use.
func WithModel(model string) ClientOption {
	return func(c *Client) { c.model = model }
}

// WithLogger sets the logger.
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// WithRateLimitPerSec bounds the client to ratePerSec Gemini calls per second,
// shared across both CheapFilter and ClassifyFI.
func WithRateLimitPerSec(ratePerSec int) ClientOption {
	return func(c *Client) {
		if ratePerSec <= 0 {
			ratePerSec = defaultRateLimitPerSec
		}
		c.limiter = rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec)
	}
}

// NewClient creates a new Client.
func NewClient(ctx context.Context, apiKey string, opts ...ClientOption) (*Client, error) {
	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	c := &Client{
		client:  genaiClient,
		model:   DefaultModel,
		limiter: rate.NewLimiter(rate.Limit(defaultRateLimitPerSec), defaultRateLimitPerSec),
		logger:  common.NewSilentLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

const cheapFilterPrompt = `You are screening planning documents. Based on this excerpt, is this document likely a formal "Further Information" (FI) request letter from a planning authority to an applicant, as opposed to a report, objection, or decision notice?

Answer with only "true" or "false".

Excerpt:
%s`

// cheapFilterSchema forces a boolean-only structured response.
var cheapFilterSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"likely": {Type: genai.TypeBoolean},
	},
	Required: []string{"likely"},
}

type cheapFilterResponse struct {
	Likely bool `json:"likely"`
}

// CheapFilter is classifier Stage 3: a cheap yes/no pass over a text prefix.
func (c *Client) CheapFilter(ctx context.Context, textPrefix string) (bool, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return false, fmt.Errorf("%w: rate limiter wait for cheap filter call: %v", common.ErrTransient, err)
	}

	prompt := fmt.Sprintf(cheapFilterPrompt, textPrefix)

	result, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature:      &zeroTemp,
		ResponseMIMEType: "application/json",
		ResponseSchema:   cheapFilterSchema,
	})
	if err != nil {
		return false, fmt.Errorf("%w: cheap filter call: %v", common.ErrTransient, err)
	}

	raw, err := extractText(result)
	if err != nil {
		return false, err
	}

	var resp cheapFilterResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return false, fmt.Errorf("malformed cheap filter response: %w", err)
	}
	return resp.Likely, nil
}

const classifyFISystemPrompt = `You classify planning-portal documents. Return true for is_fi_request only if the text is a formal Further-Information request sent BY a planning authority TO an applicant, asking for additional information or reports before a decision can be made. Existing consultant reports, third-party objections, and applicant cover letters or submissions are NOT FI requests and must be classified false, even if they discuss similar subject matter.

If is_fi_request is true, also determine whether the request asks for a "%s" assessment or report (matches_type). If it does, extract validation_quote: a short contiguous span copied verbatim from the text containing a request verb (submit, provide, carry out, undertake, produce, include, supply, is required, is requested) adjacent to a keyword for that report type. If matches_type is false, leave validation_quote empty.

Document text:
%s`

var classifyFISchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"is_fi_request":    {Type: genai.TypeBoolean},
		"matches_type":     {Type: genai.TypeBoolean},
		"validation_quote": {Type: genai.TypeString},
		"confidence":       {Type: genai.TypeNumber},
	},
	Required: []string{"is_fi_request", "matches_type", "validation_quote", "confidence"},
}

type classifyFIResponse struct {
	IsFIRequest     bool    `json:"is_fi_request"`
	MatchesType     bool    `json:"matches_type"`
	ValidationQuote string  `json:"validation_quote"`
	Confidence      float64 `json:"confidence"`
}

// ClassifyFI is classifier Stages 4 and 5 combined into one structured call.
func (c *Client) ClassifyFI(ctx context.Context, text, targetType string) (interfaces.ClassifyResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return interfaces.ClassifyResult{}, fmt.Errorf("%w: rate limiter wait for classify fi call: %v", common.ErrTransient, err)
	}

	prompt := fmt.Sprintf(classifyFISystemPrompt, targetType, text)

	result, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature:      &zeroTemp,
		ResponseMIMEType: "application/json",
		ResponseSchema:   classifyFISchema,
	})
	if err != nil {
		return interfaces.ClassifyResult{}, fmt.Errorf("%w: classify fi call: %v", common.ErrTransient, err)
	}

	raw, err := extractText(result)
	if err != nil {
		return interfaces.ClassifyResult{}, err
	}

	var resp classifyFIResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return interfaces.ClassifyResult{}, fmt.Errorf("malformed classify fi response: %w", err)
	}

	return interfaces.ClassifyResult{
		IsFI:            resp.IsFIRequest,
		MatchesType:     resp.MatchesType,
		ValidationQuote: strings.TrimSpace(resp.ValidationQuote),
		Confidence:      resp.Confidence,
	}, nil
}

func extractText(result *genai.GenerateContentResponse) (string, error) {
	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("malformed llm response: no content generated")
	}
	var sb strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String(), nil
}

var _ interfaces.LLMClassifier = (*Client)(nil)
