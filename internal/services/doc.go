// Package services implements the two HTTP integrations of the upload workflow.
//
// # Upload Credentials
//
// [CredentialClient] calls GET /api/video/upload-sas-url with the principal's bearer token and returns a
// [models.UploadCredential]: the blob owner identifier and a time-limited, single-use pre-signed URL.
//
// # Blob Upload
//
// [BlobClient] consumes the credential and streams the selected file to the pre-signed URL with a single
// PUT. Azure requires the x-ms-blob-type header; the owner identifier travels as x-ms-meta-userId metadata
// so the trimming function can attribute the blob.
//
// # Error Handling
//
// Both clients return [*StatusError], which wraps a sentinel from the shared package:
//   - [shared.ErrCredentialRequest] : credential endpoint failed (non-2xx, transport error, bad body)
//   - [shared.ErrBlobUpload] : blob PUT failed or the credential was already used
//
// The HTTP status is preserved (zero when no response arrived) and can be read with [StatusCode].
// Neither client retries; the workflow decides.
package services
