package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"golang.org/x/time/rate"

	"github.com/karlennis/fiscan/internal/common"
	"github.com/karlennis/fiscan/internal/interfaces"
)

// Fetcher implements C2: retrieves object bytes, streaming to a temp file when
// the object exceeds streamToDiskBytes, and hard-rejecting objects over
// maxObjectBytes without fetching their body.
type Fetcher struct {
	client S3API
	bucket string
	maxObjectBytes int64
	streamToDiskBytes int64
	limiter *rate.Limiter
	logger *common.Logger
}

// NewFetcher creates a Fetcher that admits at most ratePerSec HeadObject/GetObject
// calls per second against the backing object store.
func NewFetcher(client S3API, bucket string, maxObjectBytes, streamToDiskBytes int64, ratePerSec int, logger *common.Logger) *Fetcher {
	if ratePerSec <= 0 {
		ratePerSec = 20
	}
	return &Fetcher{
		client: client,
		bucket: bucket,
		maxObjectBytes: maxObjectBytes,
		streamToDiskBytes: streamToDiskBytes,
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec),
		logger: logger,
	}
}

// Fetch retrieves key's bytes, returning an in-memory buffer for small objects
// or a path to a temp file (caller's responsibility to remove) for large ones.
func (f *Fetcher) Fetch(ctx context.Context, key string) (interfaces.FetchResult, error) {
	size, haveSize := f.headSize(ctx, key)
	if haveSize && size > f.maxObjectBytes {
		return interfaces.FetchResult{}, fmt.Errorf("%w: object %s is %d bytes, exceeds max_object_bytes %d",
			common.ErrOversize, key, size, f.maxObjectBytes)
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return interfaces.FetchResult{}, fmt.Errorf("%w: rate limiter wait for object %s: %v", common.ErrTransient, key, err)
	}

	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(f.bucket),
		Key: aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		var notFound *types.NotFound
		if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
			return interfaces.FetchResult{}, fmt.Errorf("%w: object %s not found", common.ErrCorrupt, key)
		}
		return interfaces.FetchResult{}, fmt.Errorf("%w: get object %s: %v", common.ErrTransient, key, err)
	}
	defer out.Body.Close()

	// Cap the read at maxObjectBytes+1 so an over-limit body is detected
	// without buffering the whole oversize object.
	limited := &io.LimitedReader{R: out.Body, N: f.maxObjectBytes + 1}

	useDisk := haveSize && size > f.streamToDiskBytes
	if !haveSize {
		// Without a HEAD size, assume disk streaming is safe and cheap; small
		// objects just produce a small temp file.
		useDisk = f.streamToDiskBytes > 0
	}

	if useDisk {
		return f.streamToTemp(limited, key)
	}
	return f.readToMemory(limited, key)
}

func (f *Fetcher) headSize(ctx context.Context, key string) (int64, bool) {
	if err := f.limiter.Wait(ctx); err != nil {
		f.logger.Debug().Err(err).Str("key", key).Msg("rate limiter wait failed, proceeding optimistically")
		return 0, false
	}
	out, err := f.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(f.bucket),
		Key: aws.String(key),
	})
	if err != nil {
		f.logger.Debug().Err(err).Str("key", key).Msg("head object failed, proceeding optimistically")
		return 0, false
	}
	return aws.ToInt64(out.ContentLength), true
}

func (f *Fetcher) readToMemory(r io.Reader, key string) (interfaces.FetchResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return interfaces.FetchResult{}, fmt.Errorf("%w: read object %s: %v", common.ErrTransient, key, err)
	}
	if int64(len(data)) > f.maxObjectBytes {
		return interfaces.FetchResult{}, fmt.Errorf("%w: object %s exceeded max_object_bytes during read", common.ErrOversize, key)
	}
	return interfaces.FetchResult{Data: data, Size: int64(len(data))}, nil
}

func (f *Fetcher) streamToTemp(r io.Reader, key string) (result interfaces.FetchResult, err error) {
	tmp, err := os.CreateTemp("", "fiscan-fetch-*")
	if err != nil {
		return interfaces.FetchResult{}, fmt.Errorf("failed to create temp file for %s: %w", key, err)
	}
	path := tmp.Name()
	defer func() {
		tmp.Close()
		if err != nil {
			os.Remove(path)
		}
	}()

	n, copyErr := io.Copy(tmp, r)
	if copyErr != nil {
		return interfaces.FetchResult{}, fmt.Errorf("%w: stream object %s to disk: %v", common.ErrTransient, key, copyErr)
	}
	if n > f.maxObjectBytes {
		return interfaces.FetchResult{}, fmt.Errorf("%w: object %s exceeded max_object_bytes during stream", common.ErrOversize, key)
	}

	return interfaces.FetchResult{FilePath: path, Size: n}, nil
}

var _ interfaces.ObjectFetcher = (*Fetcher)(nil)
