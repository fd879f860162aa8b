// Package chain holds the client for the external chain-broadcast
// collaborator. This process only submits mint requests; signing and
// broadcasting happen on the other side.
package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"quillvault/internal/domain/models"
)

// Broadcaster accepts a mint request and returns the resulting
// transaction identifier.
type Broadcaster interface {
	Mint(ctx context.Context, req models.MintRequest) (models.BroadcastResult, error)
}

// HTTPBroadcaster submits mint requests to the broadcast service over
// HTTP.
type HTTPBroadcaster struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHTTPBroadcaster creates a client for the broadcast service at
// baseURL.
func NewHTTPBroadcaster(baseURL string, logger *slog.Logger) *HTTPBroadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPBroadcaster{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// Mint submits one mint request and waits for the transaction ID.
func (c *HTTPBroadcaster) Mint(ctx context.Context, req models.MintRequest) (models.BroadcastResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return models.BroadcastResult{}, fmt.Errorf("marshal mint request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/mint", bytes.NewReader(body))
	if err != nil {
		return models.BroadcastResult{}, fmt.Errorf("build mint request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return models.BroadcastResult{}, fmt.Errorf("broadcast service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return models.BroadcastResult{}, fmt.Errorf("broadcast service returned %d: %s", resp.StatusCode, string(msg))
	}

	var result models.BroadcastResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return models.BroadcastResult{}, fmt.Errorf("decode broadcast response: %w", err)
	}

	c.logger.Info("mint request broadcast",
		"document_key", req.DocumentKey,
		"transaction_id", result.TransactionID,
	)
	return result, nil
}
