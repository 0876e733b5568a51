// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI is a view over the upload workflow:
//  1. [UploadView] : path input while idle, a spinner and step counter while an attempt runs,
//     the result link (copy with c, open with o) once trimming completes, or the failure with a retry hint
//  2. [HistoryView] : recent attempts in a filterable list
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Workflow snapshots flow in through [workflow.Workflow.Changes]; the model never mutates state itself,
// it only forwards intents (select, start, retry, reset).
//
// Key bindings are listed with charmbracelet/bubbles/help.
package ui
