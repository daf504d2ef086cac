// Package host provides the REST client for reading state from and calling
// services on the home automation host.
package host

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/bryan-cox/chorebot/internal/config"
	"github.com/bryan-cox/chorebot/internal/model"
	"github.com/bryan-cox/chorebot/internal/snapshot"
)

// Service domains and actions used by ChoreBot.
const (
	DomainTodo     = "todo"
	DomainChorebot = "chorebot"

	ServiceUpdateItem   = "update_item"
	ServiceRemoveItem   = "remove_item"
	ServiceAddTask      = "add_task"
	ServiceUpdateTask   = "update_task"
	ServiceRedeemReward = "redeem_reward"
	ServiceManageReward = "manage_reward"
)

// maxErrorBody caps how much of a failed response is kept on a StatusError.
const maxErrorBody = 4 << 10

// ErrNotConfigured is returned when no host URL has been set.
var ErrNotConfigured = errors.New("host URL is not configured (set CHOREBOT_HOST_URL)")

// Caller issues mutating service calls.
type Caller interface {
	CallService(ctx context.Context, domain, service string, payload map[string]any) error
}

// StatusError is returned when the host answers with a non-2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("host returned status %d", e.Code)
	}
	return fmt.Sprintf("host returned status %d: %s", e.Code, e.Body)
}

// Client talks to the host REST API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a client from cfg.
func NewClient(cfg config.HostConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, ErrNotConfigured
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		token:   cfg.Token,
		http:    &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// States fetches every entity and indexes it by id.
func (c *Client) States(ctx context.Context) (model.Snapshot, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/states", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch states: %w", err)
	}
	defer resp.Body.Close()

	var entities []model.Entity
	if err := json.NewDecoder(resp.Body).Decode(&entities); err != nil {
		return nil, fmt.Errorf("failed to decode states: %w", err)
	}
	return snapshot.FromEntities(entities), nil
}

// CallService posts payload to a service. Calls are never retried.
func (c *Client) CallService(ctx context.Context, domain, service string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode service data: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, fmt.Sprintf("/api/services/%s/%s", domain, service), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	callID := uuid.NewString()
	slog.Debug("calling service", "call_id", callID, "domain", domain, "service", service)

	resp, err := c.do(req)
	if err != nil {
		slog.Warn("service call failed", "call_id", callID, "domain", domain, "service", service, "error", err)
		return fmt.Errorf("failed to call %s.%s: %w", domain, service, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// do sends req and turns non-2xx answers into a *StatusError.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	return resp, nil
}
