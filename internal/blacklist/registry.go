package blacklist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Registry is the external service of record for blacklist entries. The bot
// submits approved requests to it and queries it on every member join.
type Registry interface {
	Submit(ctx context.Context, entry Entry) error
	Check(ctx context.Context, userID string) (Status, error)
}

type Entry struct {
	AuthID      string  `json:"auth_id"`
	UserID      string  `json:"user_id"`
	DisplayName string  `json:"display_name"`
	Reason      string  `json:"reason"`
	MCInfo      *MCInfo `json:"mc_info,omitempty"`
}

type MCInfo struct {
	Username string `json:"username"`
	UUID     string `json:"uuid"`
}

type Status struct {
	Blacklisted bool   `json:"blacklisted"`
	Reason      string `json:"reason"`
}

// Client talks to the registry over HTTP. Connection failures and non-200
// responses come back as errors carrying whatever diagnostics the registry
// offered; the caller decides whether to fail open or closed.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) Submit(ctx context.Context, entry Entry) error {
	body, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/blacklist", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("registry submit: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("registry submit: status %d: %s", resp.StatusCode, readBody(resp.Body))
	}
	return nil
}

func (c *Client) Check(ctx context.Context, userID string) (Status, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/check_blacklist/"+userID, nil)
	if err != nil {
		return Status{}, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Status{}, fmt.Errorf("registry check: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Status{}, fmt.Errorf("registry check: status %d: %s", resp.StatusCode, readBody(resp.Body))
	}

	var status Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return Status{}, fmt.Errorf("registry check: decode: %w", err)
	}
	return status, nil
}

func readBody(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 2048))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
