package mirror

import (
	"context"
	"fmt"
	"io"

	"github.com/Atronar/yt-dlp-web-api/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// uploadToS3 uploads to creds["bucket"]. An optional creds["endpoint"]
// targets S3-compatible stores with path-style addressing.
func uploadToS3(ctx context.Context, creds map[string]string, name string, reader io.Reader) error {
	bucket := creds["bucket"]
	if bucket == "" || creds["region"] == "" {
		return fmt.Errorf("missing required keys: bucket, region")
	}

	provider := credentials.NewStaticCredentialsProvider(creds["accessKey"], creds["secretKey"], "")
	opts := s3.Options{
		Region:      creds["region"],
		Credentials: provider,
	}
	if endpoint := creds["endpoint"]; endpoint != "" {
		opts.BaseEndpoint = aws.String(endpoint)
		opts.UsePathStyle = true
	}
	client := s3.New(opts)
	uploader := manager.NewUploader(client)

	key := objectName(creds, name)
	_, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   reader,
	})
	if err != nil {
		return fmt.Errorf("failed to upload object %s to bucket %s: %w", key, bucket, err)
	}

	logger.Infof("Successfully uploaded object '%s' to bucket '%s'", key, bucket)
	return nil
}
