package workflow

import (
	"time"

	"github.com/desertthunder/barclip/internal/models"
)

// Phase is a step of the upload workflow.
type Phase int

const (
	Idle Phase = iota
	FileSelected
	RequestingCredential
	Uploading
	AwaitingCompletion
	Completed
	Failed
)

var phaseNames = map[Phase]string{
	Idle:                 "idle",
	FileSelected:         "file_selected",
	RequestingCredential: "requesting_credential",
	Uploading:            "uploading",
	AwaitingCompletion:   "awaiting_completion",
	Completed:            "completed",
	Failed:               "failed",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return "unknown"
}

// MarshalText implements [encoding.TextMarshaler].
func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// Busy reports whether an attempt owns the workflow.
func (p Phase) Busy() bool {
	return p == RequestingCredential || p == Uploading || p == AwaitingCompletion
}

// Settled reports whether the phase waits for user input.
func (p Phase) Settled() bool { return !p.Busy() }

// State is an immutable snapshot of the workflow.
type State struct {
	Phase     Phase
	File      *models.SelectedFile
	Err       *Error
	Message   string
	ResultURL string
	AttemptID string
	UpdatedAt time.Time
}
