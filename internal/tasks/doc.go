// Package tasks runs uploads in bulk with real-time progress reporting.
//
// # Batch Uploads
//
// [BatchRunner.Run] scans a directory, skips anything that is not a video and
// drives each remaining file through the upload workflow in name order. Each
// file waits for its trim result (or failure) before the next one starts, and
// starts are paced with a [rate.Limiter] so a large directory does not flood
// the service.
//
// A failed file does not stop the batch. A cancelled context or a sign-in that
// cannot complete does.
//
// # Progress Reporting
//
// Updates use non-blocking channel sends: a slow reader misses updates instead
// of stalling the batch. Settled files carry their [FileResult] in
// [ProgressUpdate.Data].
package tasks
