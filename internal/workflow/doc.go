// package workflow drives a single video through the trim pipeline:
// sign-in check, upload credential, blob upload and the wait for the completion event.
//
// A [Workflow] owns its [State]. Collaborators are injected through [Options] and
// observers read snapshots from [Workflow.Changes].
package workflow
