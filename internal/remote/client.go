// Package remote is the device side of the sync wire protocol.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dukerupert/choresync/internal/model"
)

const defaultTimeout = 15 * time.Second

// HTTPError is a non-2xx response from the sync server.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a client for the server at baseURL. A nil httpClient
// gets one with a bounded timeout.
func NewClient(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: httpClient,
	}
}

// Pull fetches every record stamped after since.
func (c *Client) Pull(ctx context.Context, since int64) (model.PullResponse, error) {
	var resp model.PullResponse
	path := "/sync?since=" + url.QueryEscape(strconv.FormatInt(since, 10))
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return model.PullResponse{}, fmt.Errorf("pull since %d: %w", since, err)
	}
	return resp, nil
}

// Push sends the local snapshot and returns the changes since its base revision.
func (c *Client) Push(ctx context.Context, req model.PushRequest) (model.PullResponse, error) {
	var resp model.PullResponse
	if err := c.doJSON(ctx, http.MethodPost, "/sync", req, &resp); err != nil {
		return model.PullResponse{}, fmt.Errorf("push from %d: %w", req.BaseRevision, err)
	}
	return resp, nil
}

// RegisterDevice binds a push token to a member.
func (c *Client) RegisterDevice(ctx context.Context, reg model.DeviceRegistration) error {
	if err := c.doJSON(ctx, http.MethodPost, "/devices", reg, nil); err != nil {
		return fmt.Errorf("register device: %w", err)
	}
	return nil
}

// UnregisterDevice removes a push token. Removing an unknown token succeeds.
func (c *Client) UnregisterDevice(ctx context.Context, token string) error {
	if err := c.doJSON(ctx, http.MethodDelete, "/devices", model.DeviceDeletion{Token: token}, nil); err != nil {
		return fmt.Errorf("unregister device: %w", err)
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, requestPath string, body, out any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+requestPath, bodyReader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	payload, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return readErr
	}

	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		if out == nil || len(payload) == 0 {
			return nil
		}
		return json.Unmarshal(payload, out)
	}

	var apiErr struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(payload))
	if json.Unmarshal(payload, &apiErr) == nil && apiErr.Error != "" {
		msg = apiErr.Error
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &HTTPError{StatusCode: resp.StatusCode, Message: msg}
}
