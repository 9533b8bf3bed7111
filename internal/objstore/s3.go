package objstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"ddexer/internal/config"
)

// S3Bucket is a Bucket backed by the AWS SDK.
type S3Bucket struct {
	client *s3.Client
	bucket string
}

// NewS3Client builds an S3 client for cfg. A custom endpoint switches to
// path-style addressing for S3-compatible services.
func NewS3Client(ctx context.Context, cfg config.S3) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
			o.UseAccelerate = false
		}
	}), nil
}

// NewS3Bucket wraps client for one bucket.
func NewS3Bucket(client *s3.Client, bucket string) *S3Bucket {
	return &S3Bucket{client: client, bucket: bucket}
}

// Name returns the bucket name.
func (b *S3Bucket) Name() string { return b.bucket }

// ListPrefixes lists common prefixes at the bucket root.
func (b *S3Bucket) ListPrefixes(ctx context.Context, after string) ([]string, error) {
	input := &s3.ListObjectsV2Input{
		Bucket:    aws.String(b.bucket),
		Delimiter: aws.String("/"),
	}
	if after != "" {
		input.StartAfter = aws.String(after)
	}
	var prefixes []string
	pager := s3.NewListObjectsV2Paginator(b.client, input)
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list prefixes in %s: %w", b.bucket, err)
		}
		for _, cp := range page.CommonPrefixes {
			// StartAfter compares keys, so the marker prefix itself comes back.
			if p := aws.ToString(cp.Prefix); p > after {
				prefixes = append(prefixes, p)
			}
		}
	}
	return prefixes, nil
}

// ListObjects lists every key under prefix.
func (b *S3Bucket) ListObjects(ctx context.Context, prefix string) ([]Object, error) {
	pager := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(prefix),
	})
	var objects []Object
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list objects in s3://%s/%s: %w", b.bucket, prefix, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if strings.HasSuffix(key, "/") {
				continue
			}
			objects = append(objects, Object{
				Key:          key,
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
	}
	return objects, nil
}

// Get downloads one object.
func (b *S3Bucket) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, URL(b.bucket, key))
		}
		return nil, fmt.Errorf("get %s: %w", URL(b.bucket, key), err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", URL(b.bucket, key), err)
	}
	return data, nil
}
