package utils

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"csv_stream_backend/pkg/errs"
)

const (
	defaultDownloadName = "Processed_results.csv"
	maxNameLen          = 50
)

var (
	safeResultName = regexp.MustCompile(`^[A-Za-z0-9_.\-]+$`)
	unsafeNameChar = regexp.MustCompile(`[^\p{L}\p{N}_\-]`)
)

// ValidateResultFileName rejects anything that is not a plain .csv name made
// of [A-Za-z0-9_.-].
func ValidateResultFileName(name string) error {
	const op = "ValidateResultFileName"
	if strings.TrimSpace(name) == "" {
		return errs.New(errs.CodeInvalidInput, op, "Filename cannot be empty.")
	}
	for _, p := range []string{"..", "/", `\`, "~"} {
		if strings.Contains(name, p) {
			return errs.New(errs.CodeInvalidInput, op, "Invalid filename.")
		}
	}
	if !strings.HasSuffix(strings.ToLower(name), ".csv") {
		return errs.New(errs.CodeInvalidInput, op, "Only CSV files are available for download.")
	}
	if !safeResultName.MatchString(name) {
		return errs.New(errs.CodeInvalidInput, op, "Invalid filename format.")
	}
	return nil
}

// IsCSVUpload reports whether an uploaded file name has a .csv extension.
func IsCSVUpload(name string) bool {
	return name != "" && strings.EqualFold(filepath.Ext(name), ".csv")
}

// MakeFilenameSafe strips directories and the extension and keeps letters,
// digits, '-' and '_'. It never returns an empty string.
func MakeFilenameSafe(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	if i := strings.LastIndex(base, "."); i > 0 {
		base = base[:i]
	}
	base = unsafeNameChar.ReplaceAllString(base, "")
	if r := []rune(base); len(r) > maxNameLen {
		base = string(r[:maxNameLen])
	}
	if base == "" {
		return "results"
	}
	return base
}

// DownloadFileName is the attachment name for a result produced from
// originalName. An unknown origin gets a fixed default.
func DownloadFileName(originalName string, now time.Time) string {
	if originalName == "" {
		return defaultDownloadName
	}
	return fmt.Sprintf("Processed_%s_%d.csv", MakeFilenameSafe(originalName), now.Unix())
}
