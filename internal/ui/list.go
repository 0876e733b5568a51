package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/barclip/internal/models"
	"github.com/dustin/go-humanize"
)

var _ list.Item = attemptItem{}

// attemptItem wraps [models.UploadAttempt] to implement [list.Item].
type attemptItem struct {
	attempt *models.UploadAttempt
}

func (i attemptItem) FilterValue() string { return i.attempt.FileName }
func (i attemptItem) Title() string       { return i.attempt.FileName }
func (i attemptItem) Description() string {
	desc := fmt.Sprintf("%s • %s • %s", i.attempt.Status, humanize.Bytes(uint64(i.attempt.Size)), humanize.Time(i.attempt.CreatedAt))
	switch {
	case i.attempt.ResultURL != "":
		desc = fmt.Sprintf("%s • %s", desc, i.attempt.ResultURL)
	case i.attempt.Error != "":
		desc = fmt.Sprintf("%s • %s", desc, i.attempt.Error)
	}
	return desc
}
