// Package image loads local files into attachments for a turn.
package image

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/yanmxa/hezell/internal/message"
)

const (
	// MaxSize is the largest payload sent inline with a prompt (20MB)
	MaxSize = 20 * 1024 * 1024
)

// SupportedTypes maps file extensions to MIME types
var SupportedTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".webp": "image/webp",
	".gif":  "image/gif",
	".heic": "image/heic",
	".pdf":  "application/pdf",
}

// Load reads and validates the file at path.
func Load(path string) (message.Attachment, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return message.Attachment{}, fmt.Errorf("invalid path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return message.Attachment{}, fmt.Errorf("file not found: %s", path)
		}
		return message.Attachment{}, fmt.Errorf("cannot access file: %w", err)
	}
	if info.IsDir() {
		return message.Attachment{}, fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > MaxSize {
		return message.Attachment{}, fmt.Errorf("file too large: %s (max %s)", FormatBytes(int(info.Size())), FormatBytes(MaxSize))
	}

	ext := strings.ToLower(filepath.Ext(absPath))
	if !IsSupported(absPath) {
		return message.Attachment{}, fmt.Errorf("unsupported file format: %s", ext)
	}
	mediaType := SupportedTypes[ext]

	data, err := os.ReadFile(absPath)
	if err != nil {
		return message.Attachment{}, fmt.Errorf("failed to read file: %w", err)
	}
	if len(data) == 0 {
		return message.Attachment{}, fmt.Errorf("%s is empty", path)
	}
	if err := sniff(data, mediaType); err != nil {
		return message.Attachment{}, fmt.Errorf("%s: %w", filepath.Base(absPath), err)
	}

	return message.Attachment{
		Name:     filepath.Base(absPath),
		MIMEType: mediaType,
		Data:     data,
	}, nil
}

// sniff checks that the content agrees with the extension. HEIC is not
// recognized by content detection and is taken on trust.
func sniff(data []byte, mediaType string) error {
	detected := http.DetectContentType(data)
	switch {
	case mediaType == "application/pdf":
		if detected != "application/pdf" {
			return fmt.Errorf("not a valid PDF")
		}
	case mediaType == "image/heic":
	case !strings.HasPrefix(detected, "image/"):
		return fmt.Errorf("not a valid image")
	}
	return nil
}

// IsSupported returns true if the file extension indicates a supported format
func IsSupported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	_, ok := SupportedTypes[ext]
	return ok
}

// FormatBytes formats byte size as human-readable string
func FormatBytes(bytes int) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := unit, 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
