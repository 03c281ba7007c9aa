package cleanup

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"

	"github.com/provisio/provisio/internal/state"
)

// emptyBuckets removes every live object, object version, and delete marker
// from each inventoried bucket so a subsequent destroy of a versioned bucket
// does not fail on residual content. Best effort: a failing bucket is logged
// and the rest of the batch proceeds.
func emptyBuckets(ctx context.Context, client ObjectStoreClient, buckets []state.Entry, logger zerolog.Logger) Log {
	var log Log
	for _, bucket := range buckets {
		_, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket.Name)})
		if err != nil {
			if isNotFound(err) {
				log = log.Add("bucket %s already absent", bucket.Name)
				continue
			}
			logger.Warn().Str("bucket", bucket.Name).Err(err).Msg("bucket probe failed")
			log = log.Add("bucket %s: probe failed: %v", bucket.Name, err)
			continue
		}

		deleted, err := drainBucket(ctx, client, bucket.Name)
		if err != nil {
			logger.Warn().Str("bucket", bucket.Name).Err(err).Msg("bucket emptying failed")
			log = log.Add("bucket %s: emptying failed after %d deletions: %v", bucket.Name, deleted, err)
			continue
		}
		log = log.Add("bucket %s emptied (%d objects/versions removed)", bucket.Name, deleted)
	}
	return log
}

// drainBucket deletes live objects first, then version and delete markers.
func drainBucket(ctx context.Context, client ObjectStoreClient, bucket string) (int, error) {
	deleted := 0

	objects := s3.NewListObjectsV2Paginator(client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
	})
	for objects.HasMorePages() {
		page, err := objects.NextPage(ctx)
		if err != nil {
			return deleted, fmt.Errorf("list objects: %w", err)
		}
		var batch []s3types.ObjectIdentifier
		for _, obj := range page.Contents {
			batch = append(batch, s3types.ObjectIdentifier{Key: obj.Key})
		}
		n, err := deleteBatch(ctx, client, bucket, batch)
		deleted += n
		if err != nil {
			return deleted, err
		}
	}

	versions := s3.NewListObjectVersionsPaginator(client, &s3.ListObjectVersionsInput{
		Bucket: aws.String(bucket),
	})
	for versions.HasMorePages() {
		page, err := versions.NextPage(ctx)
		if err != nil {
			return deleted, fmt.Errorf("list versions: %w", err)
		}
		var batch []s3types.ObjectIdentifier
		for _, v := range page.Versions {
			batch = append(batch, s3types.ObjectIdentifier{Key: v.Key, VersionId: v.VersionId})
		}
		for _, m := range page.DeleteMarkers {
			batch = append(batch, s3types.ObjectIdentifier{Key: m.Key, VersionId: m.VersionId})
		}
		n, err := deleteBatch(ctx, client, bucket, batch)
		deleted += n
		if err != nil {
			return deleted, err
		}
	}

	return deleted, nil
}

func deleteBatch(ctx context.Context, client ObjectStoreClient, bucket string, batch []s3types.ObjectIdentifier) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}
	_, err := client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(bucket),
		Delete: &s3types.Delete{Objects: batch, Quiet: aws.Bool(true)},
	})
	if err != nil {
		return 0, fmt.Errorf("delete batch: %w", err)
	}
	return len(batch), nil
}
