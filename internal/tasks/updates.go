package tasks

import (
	"fmt"

	"github.com/desertthunder/barclip/internal/models"
	"github.com/dustin/go-humanize"
)

// ProgressUpdate represents a progress event during a batch.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current file number
	Total   int    // Number of videos in the batch
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data (a FileResult once a file settles)
}

// Operation phase enumeration
type Phase int

const (
	ScanDirectory Phase = iota
	UploadFile
	FileCompleted
	FileFailed
	FileSkipped
)

func (p Phase) String() string {
	switch p {
	case ScanDirectory:
		return "scan_directory"
	case UploadFile:
		return "upload_file"
	case FileCompleted:
		return "file_completed"
	case FileFailed:
		return "file_failed"
	case FileSkipped:
		return "file_skipped"
	default:
		return ""
	}
}

func scanUpdate(dir string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ScanDirectory,
		Message: fmt.Sprintf("Scanning %s for videos...", dir),
	}
}

func skippedUpdate(res FileResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FileSkipped,
		Message: fmt.Sprintf("- skipped %s: %s", res.Name, res.Error),
		Data:    res,
	}
}

func uploadUpdate(step, total int, file *models.SelectedFile) ProgressUpdate {
	return ProgressUpdate{
		Phase:   UploadFile,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Uploading %s (%s)...", step, total, file.Name, humanize.Bytes(uint64(file.Size))),
	}
}

func completedUpdate(step, total int, res FileResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FileCompleted,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s → %s", step, total, res.Name, res.ResultURL),
		Data:    res,
	}
}

func failedUpdate(step, total int, res FileResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FileFailed,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %s", step, total, res.Name, res.Error),
		Data:    res,
	}
}
