// Package mirror copies finished artifacts to extra storage backends.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Atronar/yt-dlp-web-api/logger"
	"github.com/Atronar/yt-dlp-web-api/models"
)

// Upload writes reader to one backend under name. Backends read their
// settings from creds.
func Upload(ctx context.Context, target models.MirrorTarget, name string, reader io.Reader) error {
	switch target.Type {
	case "local":
		if err := uploadToLocal(ctx, target.Credentials, name, reader); err != nil {
			return fmt.Errorf("failed to copy to local mirror: %w", err)
		}
	case "s3":
		if err := uploadToS3(ctx, target.Credentials, name, reader); err != nil {
			return fmt.Errorf("failed to upload to S3: %w", err)
		}
	case "gcs":
		if err := uploadToGCS(ctx, target.Credentials, name, reader); err != nil {
			return fmt.Errorf("failed to upload to GCS: %w", err)
		}
	case "sftp":
		if err := uploadToSFTP(ctx, target.Credentials, name, reader); err != nil {
			return fmt.Errorf("failed to upload to SFTP: %w", err)
		}
	default:
		return fmt.Errorf("unknown mirror type: %s", target.Type)
	}
	return nil
}

// Set is every configured mirror.
type Set struct {
	targets []models.MirrorTarget
}

func NewSet(targets []models.MirrorTarget) *Set {
	return &Set{targets: targets}
}

// Len reports the number of targets.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.targets)
}

// Copy uploads the file at path to every target under its base name.
// Every target is attempted; the returned error joins all failures.
func (s *Set) Copy(ctx context.Context, path string) error {
	if s.Len() == 0 {
		return nil
	}
	name := filepath.Base(path)

	var errs []error
	for _, target := range s.targets {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open %s for mirroring: %w", path, err)
		}
		err = Upload(ctx, target, name, f)
		f.Close()
		if err != nil {
			logger.Errorf("Mirror %s failed for %s: %v", target.Type, name, err)
			errs = append(errs, err)
			continue
		}
		logger.Debugf("Mirrored %s to %s", name, target.Type)
	}
	return errors.Join(errs...)
}

func objectName(creds map[string]string, name string) string {
	if prefix := creds["prefix"]; prefix != "" {
		return prefix + "/" + name
	}
	return name
}
