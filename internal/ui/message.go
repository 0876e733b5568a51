package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/barclip/internal/models"
	"github.com/desertthunder/barclip/internal/workflow"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgStateChanged MsgKind = iota
	MsgAttemptDone
	MsgHistoryLoaded
	MsgActionDone
)

// stateChangedMsg is the constructor for [MsgStateChanged]
func stateChangedMsg(state workflow.State) Msg {
	return Msg{kind: MsgStateChanged, data: state}
}

// attemptDoneMsg is the constructor for [MsgAttemptDone], sent when Start or Retry returns
func attemptDoneMsg(err error) Msg {
	return Msg{kind: MsgAttemptDone, data: err}
}

// historyLoadedMsg is the constructor for [MsgHistoryLoaded]
func historyLoadedMsg(attempts []*models.UploadAttempt, err error) Msg {
	return Msg{
		kind: MsgHistoryLoaded,
		data: struct {
			attempts []*models.UploadAttempt
			err      error
		}{attempts, err},
	}
}

// actionDoneMsg is the constructor for [MsgActionDone], the outcome of copy or open
func actionDoneMsg(notice string, err error) Msg {
	return Msg{
		kind: MsgActionDone,
		data: struct {
			notice string
			err    error
		}{notice, err},
	}
}
