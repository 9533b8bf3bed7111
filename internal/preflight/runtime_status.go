package preflight

import (
	"context"
	"fmt"
	"time"

	"ddexer/internal/config"
	"ddexer/internal/objstore"
)

// CheckBucket lists the top level of a source's bucket.
func CheckBucket(ctx context.Context, buckets objstore.Provider, src config.Source) Result {
	name := sourceCheckName(src, "bucket")
	if !src.S3.Enabled() {
		return Result{Name: name, Passed: true, Detail: "Disabled"}
	}
	if buckets == nil {
		return Result{Name: name, Detail: "Unknown"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	bucket, err := buckets.Bucket(checkCtx, src.S3)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("client failed (%v)", err)}
	}
	prefixes, err := bucket.ListPrefixes(checkCtx, "")
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("list failed (%v)", err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d delivery prefixes)", objstore.URL(src.S3.Bucket, ""), len(prefixes))}
}

// CheckSource evaluates every remote dependency of one source.
func CheckSource(ctx context.Context, buckets objstore.Provider, src config.Source) []Result {
	results := []Result{CheckCredentials(src)}
	if src.S3.Enabled() {
		results = append(results, CheckBucket(ctx, buckets, src))
	}
	if src.SDK.Endpoint != "" {
		results = append(results, CheckEndpoint(ctx, sourceCheckName(src, "api"), src.SDK.Endpoint))
	}
	return results
}
