// Package backupclient triggers the pgbackup sidecar over its CGI surface.
package backupclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

type Client struct {
	baseURL string
	httpc   *http.Client
}

// FromEnv returns a client for the configured sidecar, or nil when no
// BACKUPCTL_URL is set. A nil client means backups are someone else's job
// in this deploy.
func FromEnv() *Client {
	url := os.Getenv("BACKUPCTL_URL")
	if url == "" {
		return nil
	}
	return &Client{
		baseURL: strings.TrimRight(url, "/"),
		httpc:   &http.Client{},
	}
}

func (c *Client) do(ctx context.Context, path string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("%s: http %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return strings.TrimSpace(string(body)), nil
}

func (c *Client) TriggerBackup(ctx context.Context) (string, error) {
	return c.do(ctx, "/cgi-bin/backup", 2*time.Minute)
}

func (c *Client) RestoreLatest(ctx context.Context) (string, error) {
	return c.do(ctx, "/cgi-bin/restore-latest", 5*time.Minute)
}
