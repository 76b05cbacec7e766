package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/zazzle-agent/taskwatch/internals/env"
	"github.com/zazzle-agent/taskwatch/internals/schemas"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

// ErrNotFound is returned when the backend reports no record for the
// requested resource. For interaction lookups this means "not yet
// submitted" and is not a failure.
var ErrNotFound = errors.New("not found")

type ErrorResponse struct {
	Status  string              `json:"status"`
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" && e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("unexpected status: %d", e.StatusCode)
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient builds a backend API client. No client-wide request timeout is
// set; callers bound each call through its context.
func NewClient(opts ...Option) *Client {
	envs := env.Get()
	client := &Client{
		baseURL:    strings.TrimRight(envs.BASE_URL, "/"),
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// StreamURL derives the websocket endpoint from the REST base URL.
func (c *Client) StreamURL() string {
	streamURL := c.baseURL
	switch {
	case strings.HasPrefix(streamURL, "https://"):
		streamURL = "wss://" + strings.TrimPrefix(streamURL, "https://")
	case strings.HasPrefix(streamURL, "http://"):
		streamURL = "ws://" + strings.TrimPrefix(streamURL, "http://")
	}
	return streamURL + "/ws/tasks"
}

// Tasks fetches the current task snapshot.
func (c *Client) Tasks(ctx context.Context) ([]schemas.Task, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/api/tasks", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, responseError(resp)
	}

	var payload []schemas.Task
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}

	return payload, nil
}

// CancelTask cancels a task server-side. Any 2xx response is success.
func (c *Client) CancelTask(ctx context.Context, taskID string, taskType string) error {
	path := "/api/tasks/" + url.PathEscape(taskID)
	if taskType != "" {
		path += "?task_type=" + url.QueryEscape(taskType)
	}
	resp, err := c.doRequest(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	return responseError(resp)
}

// Commission asks the backend to start a product generation task. Only the
// development emulator exposes this endpoint; the production backend creates
// tasks from donation webhooks.
func (c *Client) Commission(ctx context.Context, donationID int64) (*schemas.Task, error) {
	body, err := json.Marshal(map[string]int64{"donation_id": donationID})
	if err != nil {
		return nil, err
	}
	resp, err := c.doRequest(ctx, http.MethodPost, "/api/tasks", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return nil, responseError(resp)
	}

	var payload schemas.Task
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}

	return &payload, nil
}

// Products fetches the authoritative product list.
func (c *Client) Products(ctx context.Context) ([]schemas.Product, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/api/products", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, responseError(resp)
	}

	var payload []schemas.Product
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}

	return payload, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.httpClient.Do(req)
}

func responseError(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("unexpected status: %s", resp.Status)
	}

	var payload ErrorResponse
	if err := json.Unmarshal(body, &payload); err == nil && (payload.Code != "" || payload.Message != "") {
		return &APIError{StatusCode: resp.StatusCode, Code: payload.Code, Message: payload.Message}
	}

	return &APIError{StatusCode: resp.StatusCode, Message: "unexpected status " + strconv.Itoa(resp.StatusCode)}
}
