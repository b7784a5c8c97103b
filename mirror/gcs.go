package mirror

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"github.com/Atronar/yt-dlp-web-api/logger"
	"google.golang.org/api/option"
)

// uploadToGCS uploads to creds["bucket"] using the base64 encoded
// service account key in creds["credentialsJSON"].
func uploadToGCS(ctx context.Context, creds map[string]string, name string, reader io.Reader) error {
	bucketName := creds["bucket"]
	if bucketName == "" || creds["credentialsJSON"] == "" {
		return fmt.Errorf("missing required keys: bucket, credentialsJSON")
	}
	credentialsJSON, err := base64.StdEncoding.DecodeString(creds["credentialsJSON"])
	if err != nil {
		return fmt.Errorf("credentialsJSON is not valid base64: %w", err)
	}

	client, err := storage.NewClient(ctx, option.WithCredentialsJSON(credentialsJSON))
	if err != nil {
		return fmt.Errorf("storage.NewClient: %w", err)
	}
	defer client.Close()

	objectKey := objectName(creds, name)
	wc := client.Bucket(bucketName).Object(objectKey).NewWriter(ctx)

	if _, err = io.Copy(wc, reader); err != nil {
		wc.Close()
		return fmt.Errorf("io.Copy: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("Writer.Close: %w", err)
	}

	logger.Infof("Successfully uploaded object '%s' to bucket '%s'", objectKey, bucketName)
	return nil
}
