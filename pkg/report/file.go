package report

import (
	"encoding/base64"
	"fmt"
	"html"
	"os"
	"path/filepath"

	"github.com/xhad/brightpath/internal/models"
)

// WriteFile renders the report and writes it to path, creating parent directories.
func WriteFile(path string, r models.Report) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(Render(r)), 0o644); err != nil {
		return fmt.Errorf("write report %s: %w", path, err)
	}
	return nil
}

// ReadFile returns the report file's content for display.
func ReadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read report %s: %w", path, err)
	}
	return string(data), nil
}

// EncodeFile returns the file's bytes in standard base64.
func EncodeFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("encode report %s: %w", path, err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func DataURI(path string) (string, error) {
	enc, err := EncodeFile(path)
	if err != nil {
		return "", err
	}
	return "data:application/octet-stream;base64," + enc, nil
}

// DownloadLink returns an HTML anchor that downloads the file under its base name.
func DownloadLink(path, label string) (string, error) {
	uri, err := DataURI(path)
	if err != nil {
		return "", err
	}
	if label == "" {
		label = "File"
	}
	return fmt.Sprintf(`<a href="%s" download="%s">%s</a>`,
		uri, html.EscapeString(filepath.Base(path)), html.EscapeString(label)), nil
}
