package kvstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// CallStore speaks the overlay "call" transport: every operation is a
// single POST carrying a protocol ID, an action name and its arguments.
// Semantics are identical to the direct transports; only fee and latency
// characteristics differ.
type CallStore struct {
	baseURL    string
	protocolID string
	httpClient *http.Client
}

// NewCallStore creates a call-transport client against the overlay
// endpoint.
func NewCallStore(baseURL, protocolID string) *CallStore {
	return &CallStore{
		baseURL:    baseURL,
		protocolID: protocolID,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type callRequest struct {
	ProtocolID string                 `json:"protocolID"`
	Action     string                 `json:"action"`
	Args       map[string]interface{} `json:"args"`
}

type callResponse struct {
	Value string   `json:"value,omitempty"`
	Keys  []string `json:"keys,omitempty"`
	Error string   `json:"error,omitempty"`
}

func (s *CallStore) call(ctx context.Context, action string, args map[string]interface{}) (*callResponse, error) {
	body, err := json.Marshal(callRequest{
		ProtocolID: s.protocolID,
		Action:     action,
		Args:       args,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/call", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrKeyNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("overlay call %s: status=%d body=%s", action, resp.StatusCode, string(b))
	}

	var payload callResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	if payload.Error != "" {
		return nil, fmt.Errorf("overlay call %s: %s", action, payload.Error)
	}
	return &payload, nil
}

func (s *CallStore) Set(ctx context.Context, key, value string, opts Options) error {
	_, err := s.call(ctx, "set", map[string]interface{}{
		"topic": opts.Topic,
		"key":   key,
		"value": value,
	})
	return err
}

func (s *CallStore) Get(ctx context.Context, key string, opts Options) (string, error) {
	resp, err := s.call(ctx, "get", map[string]interface{}{
		"topic": opts.Topic,
		"key":   key,
	})
	if err != nil {
		return "", err
	}
	return resp.Value, nil
}

func (s *CallStore) List(ctx context.Context, topic string) ([]string, error) {
	resp, err := s.call(ctx, "list", map[string]interface{}{
		"topic": topic,
	})
	if err != nil {
		return nil, err
	}
	return resp.Keys, nil
}

func (s *CallStore) Delete(ctx context.Context, key, topic string) error {
	_, err := s.call(ctx, "delete", map[string]interface{}{
		"topic": topic,
		"key":   key,
	})
	return err
}
