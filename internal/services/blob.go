package services

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/barclip/internal/models"
	"github.com/desertthunder/barclip/internal/shared"
)

// Headers required by Azure Blob Storage for a single-shot block blob PUT.
const (
	HeaderBlobType    = "x-ms-blob-type"
	HeaderOwnerMeta   = "x-ms-meta-userId"
	BlobTypeBlockBlob = "BlockBlob"
)

// BlobClient streams files straight to pre-signed blob URLs.
type BlobClient struct {
	httpClient *http.Client
	logger     *log.Logger
}

// NewBlobClient creates a [BlobClient]. A nil client means [http.DefaultClient].
func NewBlobClient(client *http.Client, logger *log.Logger) *BlobClient {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = shared.NewDiscardLogger()
	}
	return &BlobClient{httpClient: client, logger: logger}
}

// Upload consumes cred and PUTs the file contents to its URL in a single transfer.
//
// The owner header keeps its exact casing; Azure stores metadata names as sent.
func (b *BlobClient) Upload(ctx context.Context, cred *models.UploadCredential, file *models.SelectedFile) error {
	fail := func(status int, body []byte, err error) error {
		return &StatusError{Kind: shared.ErrBlobUpload, StatusCode: status, Body: truncate(body), Err: err}
	}

	if err := cred.Consume(); err != nil {
		return fail(0, nil, err)
	}

	body, err := file.Open()
	if err != nil {
		return fail(0, nil, fmt.Errorf("failed to open %s: %w", file.Name, err))
	}
	defer body.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, cred.UploadURL, body)
	if err != nil {
		return fail(0, nil, fmt.Errorf("failed to create request: %w", err))
	}
	req.ContentLength = file.Size
	if file.Size == 0 {
		req.Body = http.NoBody
	}
	req.Header[HeaderBlobType] = []string{BlobTypeBlockBlob}
	req.Header[HeaderOwnerMeta] = []string{cred.OwnerID}
	if file.MIMEType != "" {
		req.Header.Set("Content-Type", file.MIMEType)
	}

	b.logger.Info("uploading to blob storage", "file", file.Name, "bytes", file.Size, "url", safeURL(req.URL))

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fail(0, nil, fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		b.logger.Warn("blob upload rejected", "status", resp.StatusCode)
		return fail(resp.StatusCode, respBody, nil)
	}

	io.Copy(io.Discard, resp.Body)
	b.logger.Info("blob upload completed", "file", file.Name)
	return nil
}
