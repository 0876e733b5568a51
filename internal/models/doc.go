// Package models defines the domain entities of the Bar Clip client.
//
// The package contains two categories of types:
//
// 1. Workflow values: short-lived data passed between the upload workflow and its collaborators
//   - [Principal] : the signed-in account that tokens are issued for
//   - [SelectedFile] : the video chosen for upload, with a lazily opened byte stream
//   - [UploadCredential] : a single-use pre-signed blob URL plus the owner identifier
//   - [CompletionEvent] : the "trim succeeded" signal carrying the result URL
//
// 2. Persistent entities: rows stored in SQLite by the repositories package
//   - [Session] : OAuth tokens for a [Principal], the most recently used one being the active account
//   - [UploadAttempt] : one row per upload attempt and its outcome
//
// Persistent entities implement [Model]; the [Repository] interface defines the CRUD surface.
package models
