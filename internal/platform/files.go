package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// File permissions
const (
	DefaultDirPermissions = 0755
)

// Filename constraints
const (
	TempFilePrefix    = "fetch-"
	MaxFilenameLength = 100
)

// Characters stripped from titles before they become filenames
const invalidFilenameChars = `<>:"/\|?*`

// CreateDirectoryIfNotExists creates directory if it doesn't exist
func CreateDirectoryIfNotExists(dirPath string) error {
	if _, err := os.Stat(dirPath); os.IsNotExist(err) {
		return os.MkdirAll(dirPath, DefaultDirPermissions)
	}
	return nil
}

// UniqueTempPath returns a collision-free path inside dir. The extension may
// be empty; when set it must not include the dot. Uses UUID v7 so names sort
// chronologically, falling back to a timestamp if UUID generation fails.
func UniqueTempPath(dir, extension string) string {
	var stem string
	if id, err := uuid.NewV7(); err == nil {
		stem = TempFilePrefix + id.String()
	} else {
		stem = fmt.Sprintf(TempFilePrefix+"%d", time.Now().UnixNano())
	}

	if extension != "" {
		return filepath.Join(dir, stem+"."+extension)
	}
	return filepath.Join(dir, stem)
}

// RemoveFile deletes path if it exists. Failures are logged and swallowed;
// a missing file is not an error.
func RemoveFile(path string) {
	if path == "" {
		return
	}
	err := os.Remove(path)
	if err == nil {
		log.Debug().Str("path", path).Msg("removed temp file")
		return
	}
	if !os.IsNotExist(err) {
		log.Warn().Err(err).Str("path", path).Msg("failed to remove temp file")
	}
}

// CleanupOldFiles removes regular files in dir older than maxAge. Dotfiles
// are kept so markers like .gitkeep survive. Returns the number removed.
func CleanupOldFiles(dir string, maxAge time.Duration) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Warn().Err(err).Str("dir", dir).Msg("temp cleanup: cannot read directory")
		return 0
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0

	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if info.ModTime().Before(cutoff) {
			path := filepath.Join(dir, entry.Name())
			if err := os.Remove(path); err != nil {
				log.Warn().Err(err).Str("path", path).Msg("temp cleanup: remove failed")
				continue
			}
			removed++
		}
	}

	if removed > 0 {
		log.Info().Int("removed", removed).Str("dir", dir).Msg("temp cleanup finished")
	}
	return removed
}

// FileSize returns the size of path in bytes, or 0 if it cannot be read
func FileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// SanitizeFilename strips characters unsafe for file operations and bounds
// the length, preserving the extension.
func SanitizeFilename(filename string) string {
	for _, ch := range invalidFilenameChars {
		filename = strings.ReplaceAll(filename, string(ch), "_")
	}

	if utf8.RuneCountInString(filename) > MaxFilenameLength {
		ext := filepath.Ext(filename)
		name := strings.TrimSuffix(filename, ext)
		keep := MaxFilenameLength - utf8.RuneCountInString(ext)
		if keep < 1 {
			keep = 1
		}
		// cut on runes so a multibyte name never ends mid-sequence
		if runes := []rune(name); len(runes) > keep {
			name = string(runes[:keep])
		}
		filename = name + ext
	}

	return filename
}

// FormatFileSize renders a byte count as a compact human-readable string
func FormatFileSize(sizeBytes int64) string {
	if sizeBytes <= 0 {
		return "0B"
	}

	units := []string{"B", "KB", "MB", "GB", "TB"}
	size := float64(sizeBytes)
	i := 0
	for size >= 1024 && i < len(units)-1 {
		size /= 1024
		i++
	}

	if i == 0 {
		return fmt.Sprintf("%dB", sizeBytes)
	}
	return fmt.Sprintf("%.1f%s", size, units[i])
}
