package mirror

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Atronar/yt-dlp-web-api/logger"
	"github.com/Atronar/yt-dlp-web-api/sanitize"
)

// uploadToLocal copies the artifact into creds["dir"], optionally under
// creds["folder"].
func uploadToLocal(ctx context.Context, creds map[string]string, name string, reader io.Reader) error {
	baseDir := creds["dir"]
	if baseDir == "" {
		return fmt.Errorf("missing required key: dir")
	}
	fullDir := filepath.Join(baseDir, sanitize.Sanitize(creds["folder"]))
	fullPath := filepath.Join(fullDir, name)

	if err := os.MkdirAll(fullDir, 0755); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", fullPath, err)
	}
	defer file.Close()

	if _, err := io.Copy(file, reader); err != nil {
		return fmt.Errorf("failed to write to file %s: %w", fullPath, err)
	}

	logger.Infof("Successfully saved file '%s' to '%s'", name, fullPath)
	return nil
}
