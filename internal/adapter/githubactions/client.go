// Package githubactions adapts GitHub deployments and workflow runs to
// the deploy_tracker and build_tracker capabilities. Both adapters share
// one REST client; all requests are read-only GETs against the v3 API.
package githubactions

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"inquest/internal/kb"
	"inquest/internal/logging"
)

const defaultBaseURL = "https://api.github.com"

// Client is a minimal GitHub REST client scoped to one repository.
type Client struct {
	baseURL    string
	owner      string
	repo       string
	token      string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewClient builds a client for one owner/name repository.
func NewClient(baseURL, owner, repo, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		owner:   owner,
		repo:    repo,
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: logging.GetLogger("adapter.githubactions"),
	}
}

// clientFromInstance reads the shared config keys every GitHub-backed
// adapter uses:
//   - repo:      "owner/name" slug (required)
//   - base_url:  API root, defaults to api.github.com
//   - token_env: optional environment variable carrying the API token
func clientFromInstance(instance kb.ProviderInstance, timeout time.Duration) (*Client, error) {
	slug, _ := instance.Config["repo"].(string)
	owner, repo, ok := strings.Cut(slug, "/")
	if !ok || owner == "" || repo == "" {
		return nil, fmt.Errorf("provider %q: config requires repo as owner/name, got %q", instance.ID, slug)
	}

	baseURL := defaultBaseURL
	if u, uok := instance.Config["base_url"].(string); uok && u != "" {
		baseURL = u
	}

	token := ""
	if tokenEnv, tok := instance.Config["token_env"].(string); tok && tokenEnv != "" {
		token = os.Getenv(tokenEnv)
	}

	return NewClient(baseURL, owner, repo, token, timeout), nil
}

// getJSON issues one GET against a repository path and decodes the body.
func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out interface{}) (string, error) {
	reqURL := fmt.Sprintf("%s/repos/%s/%s/%s", c.baseURL, c.owner, c.repo, strings.TrimPrefix(path, "/"))
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return reqURL, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return reqURL, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Debug("request %s failed: %s", reqURL, string(body))
		return reqURL, fmt.Errorf("request failed with status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return reqURL, fmt.Errorf("decode response: %w", err)
	}
	return reqURL, nil
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
