// Package objectstore implements the object-store lister and document fetcher
// (C1, C2): paginated, checkpointable enumeration of planning documents and
// size-capped retrieval of their bytes.
package objectstore

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3API is the subset of the S3 client this package needs. Modeled on
// gurre-ddb-pitr's aws.S3Client, extended with ListObjectsV2 for the Lister.
type S3API interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

var (
	_ S3API = (*s3.Client)(nil)
)
