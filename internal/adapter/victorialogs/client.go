// Package victorialogs implements the log_store capability against a
// VictoriaLogs instance. It supports two intents: raw log samples and
// top error-signature aggregation over the investigation window.
package victorialogs

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"inquest/internal/logging"
)

// Client is an HTTP client wrapper for the VictoriaLogs query API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewClient creates a VictoriaLogs HTTP client with tuned connection
// pooling. queryTimeout bounds one query execution end to end.
func NewClient(baseURL, token string, queryTimeout time.Duration) *Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxConnsPerHost:     20,
		MaxIdleConnsPerHost: 10, // default 2 causes connection churn
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   queryTimeout,
		},
		logger: logging.GetLogger("adapter.victorialogs"),
	}
}

// LogEntry is one log line from the query endpoint (JSON-lines format).
type LogEntry struct {
	Time    string            `json:"_time"`
	Message string            `json:"_msg"`
	Stream  string            `json:"_stream"`
	Fields  map[string]string `json:"-"`
}

// QueryLogs executes a LogsQL query and returns matching entries.
// Uses the /select/logsql/query endpoint with JSON-lines responses.
func (c *Client) QueryLogs(ctx context.Context, query string, limit int) ([]LogEntry, error) {
	form := url.Values{}
	form.Set("query", query)
	if limit > 0 {
		form.Set("limit", strconv.Itoa(limit))
	}

	reqURL := fmt.Sprintf("%s/select/logsql/query", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create query request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("query failed with status %d", resp.StatusCode)
	}

	entries := make([]LogEntry, 0, limit)
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var raw map[string]string
		if err := json.Unmarshal(line, &raw); err != nil {
			c.logger.Debug("skipping malformed log line: %v", err)
			continue
		}

		entry := LogEntry{
			Time:    raw["_time"],
			Message: raw["_msg"],
			Stream:  raw["_stream"],
			Fields:  raw,
		}
		entries = append(entries, entry)

		if limit > 0 && len(entries) >= limit {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read query response: %w", err)
	}

	return entries, nil
}
