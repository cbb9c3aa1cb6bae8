package report

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Uploader publishes a finished report file to remote storage and returns its location.
type Uploader interface {
	Upload(ctx context.Context, key string, body []byte, contentType string) (string, error)
}

// ObjectKey is the remote key for a report file: <prefix>/<report id>/<file>.
func ObjectKey(prefix, reportID, file string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = "reports"
	}
	return path.Join(prefix, reportID, filepath.Base(file))
}

// Publish uploads the report file at file under the report's id.
func Publish(ctx context.Context, up Uploader, prefix, reportID, file string) (string, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("read report %s: %w", file, err)
	}

	contentType := "text/plain; charset=utf-8"
	if strings.EqualFold(filepath.Ext(file), ".tsv") {
		contentType = "text/tab-separated-values; charset=utf-8"
	}

	loc, err := up.Upload(ctx, ObjectKey(prefix, reportID, file), data, contentType)
	if err != nil {
		return "", fmt.Errorf("upload report: %w", err)
	}
	return loc, nil
}
