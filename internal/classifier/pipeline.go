package classifier

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/karlennis/fiscan/internal/common"
	"github.com/karlennis/fiscan/internal/interfaces"
)

// decision is a cached pipeline outcome, keyed at the same granularity the
// pipeline itself short-circuits at.
type decision struct {
	result interfaces.ClassifyResult
	stage string
	match bool
}

// Pipeline runs the six-stage cascade over extracted text (C4).
type Pipeline struct {
	llm interfaces.LLMClassifier
	cheapFilterLen int
	maxRetries int
	callTimeout time.Duration
	cache *lru.Cache[string, decision]
	logger *common.Logger
}

// New creates a Pipeline with an LRU decision cache of size cacheSize
// (at most 100; a non-positive or larger size uses 100).
func New(llm interfaces.LLMClassifier, cheapFilterLen, cacheSize int, callTimeout time.Duration, logger *common.Logger) (*Pipeline, error) {
	if cheapFilterLen <= 0 {
		cheapFilterLen = 5000
	}
	if cacheSize <= 0 || cacheSize > 100 {
		cacheSize = 100
	}
	if callTimeout <= 0 {
		callTimeout = 60 * time.Second
	}
	cache, err := lru.New[string, decision](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create classifier cache: %w", err)
	}
	return &Pipeline{
		llm: llm,
		cheapFilterLen: cheapFilterLen,
		maxRetries: 3,
		callTimeout: callTimeout,
		cache: cache,
		logger: logger,
	}, nil
}

// cacheKey hashes the first 1000 characters of text with the target type and
// project id.
func cacheKey(text, docType, projectID string) string {
	prefix := text
	if len(prefix) > 1000 {
		prefix = prefix[:1000]
	}
	h := sha256.New()
	h.Write([]byte(prefix))
	h.Write([]byte{0})
	h.Write([]byte(docType))
	h.Write([]byte{0})
	h.Write([]byte(projectID))
	return hex.EncodeToString(h.Sum(nil))
}

// Classify runs the cascade. fileName is the document's basename (for Stage
// 0), docType is the job's target document type (Stage 5 / lexicon), and
// projectID feeds the cache key.
func (p *Pipeline) Classify(ctx context.Context, fileName, text, docType, projectID string) (interfaces.ClassifyResult, string, error) {
	key := cacheKey(text, docType, projectID)
	if cached, ok := p.cache.Get(key); ok {
		if cached.match && !validateQuote(docType, cached.result.ValidationQuote) {
			return interfaces.ClassifyResult{}, "stage5_quote_rejected", fmt.Errorf("%w: quote %q", common.ErrHallucinatedQuote, cached.result.ValidationQuote)
		}
		return cached.result, cached.stage, nil
	}

	result, stage, err := p.classifyUncached(ctx, fileName, text, docType)
	if err != nil {
		return interfaces.ClassifyResult{}, stage, err
	}

	p.cache.Add(key, decision{result: result, stage: stage, match: result.IsFI && result.MatchesType})
	return result, stage, nil
}

func (p *Pipeline) classifyUncached(ctx context.Context, fileName, text, docType string) (interfaces.ClassifyResult, string, error) {
	if stageFilenameReject(fileName) {
		return interfaces.ClassifyResult{}, "stage0_filename", nil
	}
	if stageLengthReject(len(text)) {
		return interfaces.ClassifyResult{}, "stage1_length", nil
	}
	if stageStructuralReject(text) {
		return interfaces.ClassifyResult{}, "stage2_structural", nil
	}

	prefix := cheapFilterPrefix(text, p.cheapFilterLen)
	likely, err := p.callCheapFilter(ctx, prefix)
	if err != nil {
		return interfaces.ClassifyResult{}, "stage3_cheap_filter", err
	}
	if !likely {
		return interfaces.ClassifyResult{}, "stage3_cheap_filter", nil
	}

	fiResult, err := p.callClassifyFI(ctx, text, docType)
	if err != nil {
		return interfaces.ClassifyResult{}, "stage4_fi_detection", err
	}
	if !fiResult.IsFI {
		return interfaces.ClassifyResult{}, "stage4_fi_detection", nil
	}
	if !fiResult.MatchesType {
		return interfaces.ClassifyResult{}, "stage5_type_match", nil
	}

	if !validateQuote(docType, fiResult.ValidationQuote) {
		p.logger.Warn().Str("doc_type", docType).Str("quote", fiResult.ValidationQuote).
			Msg("classifier returned validation quote that failed lexicon post-validation")
		return interfaces.ClassifyResult{}, "stage5_quote_rejected", fmt.Errorf("%w: quote %q", common.ErrHallucinatedQuote, fiResult.ValidationQuote)
	}

	return fiResult, "stage5_confirmed", nil
}

func (p *Pipeline) callCheapFilter(ctx context.Context, prefix string) (bool, error) {
	var result bool
	err := p.withRetry(ctx, func(ctx context.Context) error {
		var callErr error
		result, callErr = p.llm.CheapFilter(ctx, prefix)
		return callErr
	})
	return result, err
}

func (p *Pipeline) callClassifyFI(ctx context.Context, text, docType string) (interfaces.ClassifyResult, error) {
	var result interfaces.ClassifyResult
	err := p.withRetry(ctx, func(ctx context.Context) error {
		var callErr error
		result, callErr = p.llm.ClassifyFI(ctx, text, docType)
		return callErr
	})
	return result, err
}

// withRetry calls fn up to maxRetries times in total, retrying on transient
// errors and malformed-output errors with exponential backoff and jitter,
// each attempt bounded by callTimeout.
func (p *Pipeline) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error
	backoff := 500 * time.Millisecond

	for attempt := 1; attempt <= p.maxRetries; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
		err := fn(callCtx)
		cancel()

		if err == nil {
			return nil
		}
		lastErr = err
		if !isRetryable(err) || attempt == p.maxRetries {
			break
		}

		jitter := time.Duration(rand.Int63n(int64(backoff) / 2))
		wait := backoff + jitter
		p.logger.Warn().Err(err).Int("attempt", attempt).Msg("classifier llm call failed, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		backoff *= 2
	}

	return fmt.Errorf("classifier llm call exhausted retries: %w", lastErr)
}

func isRetryable(err error) bool {
	return errors.Is(err, common.ErrTransient) || strings.Contains(err.Error(), "malformed") || strings.Contains(err.Error(), "invalid structured output")
}
