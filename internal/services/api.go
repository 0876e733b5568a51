package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/barclip/internal/models"
	"github.com/desertthunder/barclip/internal/shared"
)

// UploadCredentialPath is the endpoint that issues pre-signed upload URLs.
const UploadCredentialPath = "/api/video/upload-sas-url"

// uploadCredentialResponse is the JSON body of a successful credential request.
type uploadCredentialResponse struct {
	UserID       string `json:"userId"`
	UploadSasURL string `json:"uploadSasUrl"`
}

// CredentialClient requests one-time upload credentials from the trimming API.
//
// Every call yields an independent credential; concurrent calls are not deduplicated.
type CredentialClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *log.Logger
}

// NewCredentialClient creates a client for the API at baseURL.
func NewCredentialClient(baseURL string, client *http.Client, logger *log.Logger) *CredentialClient {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = shared.NewDiscardLogger()
	}

	return &CredentialClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
		logger:     logger,
	}
}

// RequestCredential performs exactly one GET against [UploadCredentialPath] using token as bearer.
//
// Failures are [*StatusError] values wrapping [shared.ErrCredentialRequest].
func (c *CredentialClient) RequestCredential(ctx context.Context, token string) (*models.UploadCredential, error) {
	fail := func(status int, body []byte, err error) error {
		return &StatusError{Kind: shared.ErrCredentialRequest, StatusCode: status, Body: truncate(body), Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+UploadCredentialPath, nil)
	if err != nil {
		return nil, fail(0, nil, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("requesting upload credential", "url", safeURL(req.URL))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fail(0, nil, fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Warn("upload credential request rejected", "status", resp.StatusCode)
		return nil, fail(resp.StatusCode, body, nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCredentialBody+1))
	if err != nil {
		return nil, fail(resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err))
	}
	if len(body) > maxCredentialBody {
		return nil, fail(resp.StatusCode, nil, fmt.Errorf("response larger than %d bytes", maxCredentialBody))
	}

	var payload uploadCredentialResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fail(resp.StatusCode, body, fmt.Errorf("failed to decode response: %w", err))
	}
	if strings.TrimSpace(payload.UploadSasURL) == "" {
		return nil, fail(resp.StatusCode, nil, errors.New("no upload URL in response"))
	}

	c.logger.Info("received upload credential", "owner", payload.UserID)
	return models.NewUploadCredential(payload.UserID, payload.UploadSasURL), nil
}
