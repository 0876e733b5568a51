// package formatter renders upload history and batch results as CSV, Markdown, plain text or JSON
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/barclip/internal/models"
	"github.com/desertthunder/barclip/internal/shared"
	"github.com/desertthunder/barclip/internal/tasks"
	"github.com/dustin/go-humanize"
)

// Format names accepted by [Export].
const (
	FormatText     = "text"
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
)

const timeLayout = "2006-01-02 15:04:05"

// Formats lists the supported export formats.
func Formats() []string {
	return []string{FormatText, FormatCSV, FormatMarkdown, FormatJSON}
}

// attemptRecord is the JSON shape of an attempt.
type attemptRecord struct {
	ID         string `json:"id"`
	AccountID  string `json:"account_id,omitempty"`
	File       string `json:"file"`
	MIMEType   string `json:"mime_type"`
	Size       int64  `json:"size"`
	Status     string `json:"status"`
	StatusCode int    `json:"status_code,omitempty"`
	Error      string `json:"error,omitempty"`
	ResultURL  string `json:"result_url,omitempty"`
	OwnerID    string `json:"owner_id,omitempty"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

// Export renders attempts in format. An empty format means text.
func Export(attempts []*models.UploadAttempt, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case "", FormatText, "txt":
		return ExportToText(attempts)
	case FormatCSV:
		return ExportToCSV(attempts)
	case FormatMarkdown, "md":
		return ExportToMarkdown(attempts)
	case FormatJSON:
		return ExportToJSON(attempts)
	default:
		return nil, fmt.Errorf("%w: unknown format %q (want one of %s)", shared.ErrInvalidArgument, format, strings.Join(Formats(), ", "))
	}
}

// ExportToCSV converts attempts to CSV with columns: ID, Created, File, Type, Size, Status, Status Code, Result URL, Error
func ExportToCSV(attempts []*models.UploadAttempt) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Created", "File", "Type", "Size", "Status", "Status Code", "Result URL", "Error"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, a := range attempts {
		code := ""
		if a.StatusCode != 0 {
			code = strconv.Itoa(a.StatusCode)
		}
		record := []string{
			a.ID,
			a.CreatedAt.UTC().Format(time.RFC3339),
			a.FileName,
			a.MIMEType,
			strconv.FormatInt(a.Size, 10),
			string(a.Status),
			code,
			a.ResultURL,
			a.Error,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts attempts to a Markdown table with a status summary
func ExportToMarkdown(attempts []*models.UploadAttempt) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("# Upload History\n\n")
	buf.WriteString(fmt.Sprintf("**Uploads**: %d\n", len(attempts)))
	buf.WriteString(fmt.Sprintf("**Summary**: %s\n\n", summary(attempts)))

	if len(attempts) == 0 {
		buf.WriteString("_No uploads yet._\n")
		return buf.Bytes(), nil
	}

	buf.WriteString("| Created | File | Size | Status | Result |\n")
	buf.WriteString("|---|---|---|---|---|\n")
	for _, a := range attempts {
		result := a.Error
		if a.ResultURL != "" {
			result = fmt.Sprintf("[trimmed video](%s)", a.ResultURL)
		}
		buf.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s |\n",
			a.CreatedAt.Local().Format(timeLayout),
			escapeCell(a.FileName),
			humanize.Bytes(uint64(a.Size)),
			a.Status,
			escapeCell(result),
		))
	}

	return buf.Bytes(), nil
}

// ExportToText converts attempts to plain text format, one line per attempt
func ExportToText(attempts []*models.UploadAttempt) ([]byte, error) {
	var buf bytes.Buffer

	if len(attempts) == 0 {
		buf.WriteString("No uploads yet.\n")
		return buf.Bytes(), nil
	}

	for i, a := range attempts {
		buf.WriteString(fmt.Sprintf("%d. %s (%s) %s, %s\n",
			i+1, a.FileName, humanize.Bytes(uint64(a.Size)), a.Status, humanize.Time(a.CreatedAt)))
		switch {
		case a.ResultURL != "":
			buf.WriteString(fmt.Sprintf("   %s\n", a.ResultURL))
		case a.Error != "":
			buf.WriteString(fmt.Sprintf("   %s\n", a.Error))
		}
	}
	buf.WriteString(fmt.Sprintf("\n%s\n", summary(attempts)))

	return buf.Bytes(), nil
}

// ExportToJSON converts attempts to an indented JSON array
func ExportToJSON(attempts []*models.UploadAttempt) ([]byte, error) {
	records := make([]attemptRecord, 0, len(attempts))
	for _, a := range attempts {
		records = append(records, attemptRecord{
			ID:         a.ID,
			AccountID:  a.AccountID,
			File:       a.FileName,
			MIMEType:   a.MIMEType,
			Size:       a.Size,
			Status:     string(a.Status),
			StatusCode: a.StatusCode,
			Error:      a.Error,
			ResultURL:  a.ResultURL,
			OwnerID:    a.OwnerID,
			CreatedAt:  a.CreatedAt.UTC().Format(time.RFC3339),
			UpdatedAt:  a.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal history: %w", err)
	}
	return append(data, '\n'), nil
}

// WriteExport renders attempts in format and writes them to path, creating parent directories.
func WriteExport(attempts []*models.UploadAttempt, format, path string) (string, error) {
	data, err := Export(attempts, format)
	if err != nil {
		return "", err
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}
	return path, nil
}

// BatchSummary renders a batch result as plain text.
func BatchSummary(result *tasks.BatchResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Directory: %s\n", result.Directory)
	fmt.Fprintf(&b, "Videos: %d (%d completed, %d failed, %d skipped)\n\n",
		result.Total, result.Succeeded, result.Failed, result.Skipped)

	for _, r := range result.Results {
		switch {
		case r.Skipped:
			fmt.Fprintf(&b, "- %s skipped: %s\n", r.Name, r.Error)
		case r.ResultURL != "":
			fmt.Fprintf(&b, "✓ %s (%s, %s) %s\n", r.Name, humanize.Bytes(uint64(r.Size)), r.Duration.Round(time.Second), r.ResultURL)
		default:
			fmt.Fprintf(&b, "✗ %s (%s) %s\n", r.Name, humanize.Bytes(uint64(r.Size)), r.Error)
		}
	}
	return b.String()
}

// summary counts attempts per status, in lifecycle order.
func summary(attempts []*models.UploadAttempt) string {
	counts := map[models.AttemptStatus]int{}
	for _, a := range attempts {
		counts[a.Status]++
	}

	order := []models.AttemptStatus{
		models.AttemptCompleted, models.AttemptFailed, models.AttemptProcessing,
		models.AttemptUploading, models.AttemptPending, models.AttemptDiscarded,
	}
	var parts []string
	for _, s := range order {
		if n := counts[s]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, s))
		}
	}
	if len(parts) == 0 {
		return "nothing uploaded"
	}
	return strings.Join(parts, ", ")
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
