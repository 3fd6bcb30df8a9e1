package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/fieldvision/fieldvision/internal/constants"
	"github.com/fieldvision/fieldvision/internal/models"
	"github.com/fieldvision/fieldvision/pkg/jwt"
)

// ErrNoToken means the agent holds no usable bearer token and cannot talk to
// the back office until one is provisioned.
var ErrNoToken = errors.New("no valid bearer token available")

// BackofficeAPI is the slice of the back-office HTTP surface the agent uses
// for missed-command recovery.
type BackofficeAPI interface {
	FetchPending(ctx context.Context) ([]models.PendingCommand, error)
	Acknowledge(ctx context.Context, ids []string) (int, error)
}

// HTTPClient talks to the back office with the provisioned bearer token.
type HTTPClient struct {
	baseURL      string
	httpClient   *http.Client
	tokenManager jwt.TokenManagerInterface
	logger       zerolog.Logger
}

// NewHTTPClient initializes a back-office client.
func NewHTTPClient(baseURL string, timeout time.Duration, tokenManager jwt.TokenManagerInterface, logger zerolog.Logger) *HTTPClient {
	if timeout <= 0 {
		timeout = constants.DefaultRequestTimeout
	}
	return &HTTPClient{
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   &http.Client{Timeout: timeout},
		tokenManager: tokenManager,
		logger:       logger,
	}
}

// FetchPending returns the agent's active commands in ascending issue order.
func (c *HTTPClient) FetchPending(ctx context.Context) ([]models.PendingCommand, error) {
	var response models.PendingCommandsResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/commands/pending", nil, &response); err != nil {
		return nil, err
	}
	return response.Commands, nil
}

// Acknowledge reports processed command ids and returns how many the back
// office actually transitioned.
func (c *HTTPClient) Acknowledge(ctx context.Context, ids []string) (int, error) {
	request := models.AckRequest{CommandIDs: ids}
	var response models.AckResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/commands/ack", request, &response); err != nil {
		return 0, err
	}
	return response.UpdatedCount, nil
}

// do runs one authenticated JSON round trip.
func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	token := c.tokenManager.GetToken()
	if token == "" {
		return ErrNoToken
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s body: %w", path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn().
			Int("status", resp.StatusCode).
			Str("path", path).
			Str("body", string(detail)).
			Msg("Back office rejected the request")
		return fmt.Errorf("backoffice %s returned %d", path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
