package objectstore

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/karlennis/fiscan/internal/common"
	"github.com/karlennis/fiscan/internal/interfaces"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/sync/singleflight"
)

// projectLayout matches "<prefix>/<project_id>/<filename>" with a PDF or DOCX
// extension. Keys that don't match this shape are skipped as non-document.
var projectLayout = regexp.MustCompile(`(?i)^(.+)/([^/]+)/([^/]+\.(?:pdf|docx))$`)

type cachedPage struct {
	objects []s3Object
	token string
	fetchedAt time.Time
}

type s3Object struct {
	key string
	size int64
	lastModified time.Time
}

// Lister implements C1: paginated, window-filtered, checkpointable enumeration
// of planning documents under a bucket prefix.
type Lister struct {
	client S3API
	bucket string
	logger *common.Logger

	pageCache *lru.Cache[string, *cachedPage]
	cacheTTL time.Duration
	flight singleflight.Group

	lastToken string
}

// NewLister creates a Lister over the given bucket.
func NewLister(client S3API, bucket string, cacheTTL time.Duration, logger *common.Logger) (*Lister, error) {
	cache, err := lru.New[string, *cachedPage](64)
	if err != nil {
		return nil, fmt.Errorf("failed to create folder cache: %w", err)
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &Lister{
		client: client,
		bucket: bucket,
		logger: logger,
		pageCache: cache,
		cacheTTL: cacheTTL,
	}, nil
}

// List returns a Go 1.23 iterator yielding entries in [startTS, endTS) matching
// the project-layout regex, paginated at up to 1000 entries per underlying
// ListObjectsV2 call. If lastProcessedKey is non-empty and continuationToken
// is empty, entries up to and including lastProcessedKey are skipped.
func (l *Lister) List(ctx context.Context, prefix string, startTS, endTS time.Time, continuationToken, lastProcessedKey string) func(yield func(interfaces.ObjectEntry, error) bool) {
	return func(yield func(interfaces.ObjectEntry, error) bool) {
		token := continuationToken
		skipping := token == "" && lastProcessedKey != ""

		for {
			page, err := l.fetchPage(ctx, prefix, token)
			if err != nil {
				yield(interfaces.ObjectEntry{}, err)
				return
			}
			l.lastToken = token

			for _, obj := range page.objects {
				if skipping {
					if obj.key <= lastProcessedKey {
						continue
					}
					skipping = false
				}

				m := projectLayout.FindStringSubmatch(obj.key)
				if m == nil {
					continue
				}
				if obj.lastModified.Before(startTS) || !obj.lastModified.Before(endTS) {
					continue
				}

				entry := interfaces.ObjectEntry{Key: obj.key, Size: obj.size, LastModified: obj.lastModified}
				if !yield(entry, nil) {
					return
				}
			}

			if page.token == "" {
				return
			}
			token = page.token
		}
	}
}

// CurrentContinuationToken returns the opaque token that fetched the page
// currently being yielded ("" for the first page), to be persisted at
// checkpoint boundaries.
func (l *Lister) CurrentContinuationToken() string {
	return l.lastToken
}

// fetchPage retrieves one ListObjectsV2 page, using the bounded TTL cache with
// single-flight coalescing to protect against thundering herds.
func (l *Lister) fetchPage(ctx context.Context, prefix, token string) (*cachedPage, error) {
	cacheKey := prefix + "\x00" + token

	if cached, ok := l.pageCache.Get(cacheKey); ok {
		if time.Since(cached.fetchedAt) < l.cacheTTL {
			return cached, nil
		}
		l.pageCache.Remove(cacheKey)
	}

	result, err, _ := l.flight.Do(cacheKey, func() (any, error) {
		return l.listPageWithRetry(ctx, prefix, token)
	})
	if err != nil {
		return nil, err
	}

	page := result.(*cachedPage)
	l.pageCache.Add(cacheKey, page)
	return page, nil
}

// listPageWithRetry issues ListObjectsV2, retrying transient errors with
// bounded exponential backoff (up to 5 attempts, 30s total).
func (l *Lister) listPageWithRetry(ctx context.Context, prefix, token string) (*cachedPage, error) {
	const maxAttempts = 5
	backoff := 500 * time.Millisecond
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		page, err := l.listPage(ctx, prefix, token)
		if err == nil {
			return page, nil
		}
		lastErr = err

		if attempt == maxAttempts {
			break
		}
		l.logger.Warn().Err(err).Int("attempt", attempt).Str("prefix", prefix).Msg("list page transient failure, retrying")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > 30*time.Second {
			backoff = 30 * time.Second
		}
	}

	return nil, fmt.Errorf("%w: list objects under %s: %v", common.ErrTransient, prefix, lastErr)
}

func (l *Lister) listPage(ctx context.Context, prefix, token string) (*cachedPage, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(l.bucket),
		Prefix: aws.String(prefix),
		MaxKeys: aws.Int32(1000),
	}
	if token != "" {
		input.ContinuationToken = aws.String(token)
	}

	out, err := l.client.ListObjectsV2(ctx, input)
	if err != nil {
		return nil, err
	}

	page := &cachedPage{fetchedAt: time.Now()}
	for _, obj := range out.Contents {
		if obj.Key == nil {
			continue
		}
		page.objects = append(page.objects, s3Object{
			key: *obj.Key,
			size: aws.ToInt64(obj.Size),
			lastModified: aws.ToTime(obj.LastModified),
		})
	}
	if out.IsTruncated != nil && *out.IsTruncated && out.NextContinuationToken != nil {
		page.token = *out.NextContinuationToken
	}

	return page, nil
}

// ProjectIDFromKey extracts the project_id path segment per the project-layout
// regex; empty if the key doesn't match.
func ProjectIDFromKey(key string) string {
	m := projectLayout.FindStringSubmatch(key)
	if m == nil {
		return ""
	}
	return m[2]
}

// FileNameFromKey extracts the filename path segment.
func FileNameFromKey(key string) string {
	return path.Base(strings.TrimSpace(key))
}

var _ interfaces.ObjectLister = (*Lister)(nil)
