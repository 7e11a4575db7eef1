// Package githubvcs adapts a GitHub repository's commit history to the
// vcs capability. Listings cover commits merged into the default branch
// within the investigation window; metadata requests expand one commit.
package githubvcs

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

	"inquest/internal/adapter"
	"inquest/internal/kb"
	"inquest/internal/logging"
	"inquest/internal/models"
)

const defaultBaseURL = "https://api.github.com"

type commitAuthor struct {
	Name string    `json:"name"`
	Date time.Time `json:"date"`
}

type commitDetail struct {
	Message string       `json:"message"`
	Author  commitAuthor `json:"author"`
}

type commitFile struct {
	Filename string `json:"filename"`
}

type commit struct {
	SHA     string       `json:"sha"`
	Commit  commitDetail `json:"commit"`
	HTMLURL string       `json:"html_url"`
	Files   []commitFile `json:"files"`
}

// ChangeLog lists repository commits for the vcs capability.
type ChangeLog struct {
	providerID string
	baseURL    string
	owner      string
	repo       string
	token      string
	httpClient *http.Client
	logger     *logging.Logger
}

// New constructs a ChangeLog from a catalog provider instance.
// Config keys:
//   - repo:      "owner/name" slug (required)
//   - base_url:  API root, defaults to api.github.com
//   - token_env: optional environment variable carrying the API token
func New(instance kb.ProviderInstance, timeout time.Duration) (adapter.Adapter, error) {
	slug, _ := instance.Config["repo"].(string)
	owner, repo, ok := strings.Cut(slug, "/")
	if !ok || owner == "" || repo == "" {
		return nil, fmt.Errorf("provider %q: config requires repo as owner/name, got %q", instance.ID, slug)
	}

	baseURL := defaultBaseURL
	if u, uok := instance.Config["base_url"].(string); uok && u != "" {
		baseURL = strings.TrimSuffix(u, "/")
	}

	token := ""
	if tokenEnv, tok := instance.Config["token_env"].(string); tok && tokenEnv != "" {
		token = os.Getenv(tokenEnv)
	}

	return &ChangeLog{
		providerID: instance.ID,
		baseURL:    baseURL,
		owner:      owner,
		repo:       repo,
		token:      token,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: logging.GetLogger("adapter.githubvcs"),
	}, nil
}

// Provider implements adapter.Adapter.
func (g *ChangeLog) Provider() string { return g.providerID }

// Query implements adapter.Adapter for the list and metadata intents.
func (g *ChangeLog) Query(ctx context.Context, req adapter.Request) (*adapter.Result, error) {
	switch req.Intent {
	case adapter.IntentMetadata:
		return g.queryMetadata(ctx, req)
	case adapter.IntentList, "":
		return g.queryList(ctx, req)
	default:
		return nil, fmt.Errorf("vcs does not support intent %q", req.Intent)
	}
}

func (g *ChangeLog) queryList(ctx context.Context, req adapter.Request) (*adapter.Result, error) {
	params := url.Values{}
	params.Set("per_page", "100")
	params.Set("since", req.TimeRange.Start.UTC().Format(time.RFC3339))
	params.Set("until", req.TimeRange.End.UTC().Format(time.RFC3339))
	if branch := req.Params["branch"]; branch != "" {
		params.Set("sha", branch)
	}

	var commits []commit
	query, err := g.getJSON(ctx, "commits", params, &commits)
	if err != nil {
		return nil, err
	}

	records := make([]adapter.RawRecord, 0, len(commits))
	refs := make([]string, 0, len(commits))
	for _, c := range commits {
		if req.Limit > 0 && len(records) >= req.Limit {
			break
		}
		records = append(records, adapter.RawRecord{
			Timestamp: c.Commit.Author.Date,
			Message:   firstLine(c.Commit.Message),
			Signature: c.SHA,
			Attrs: map[string]string{
				"sha":    c.SHA,
				"author": c.Commit.Author.Name,
			},
		})
		refs = append(refs, c.SHA)
	}

	return &adapter.Result{
		Capability: adapter.CapVCS,
		Provider:   g.providerID,
		Kind:       models.KindChange,
		TimeRange:  req.TimeRange,
		Query:      query,
		Summary:    fmt.Sprintf("Found %d commits in the time window.", len(records)),
		Records:    records,
		Refs:       refs,
		Tags:       []string{"changes"},
	}, nil
}

func (g *ChangeLog) queryMetadata(ctx context.Context, req adapter.Request) (*adapter.Result, error) {
	if req.Ref == "" {
		return nil, fmt.Errorf("metadata request requires a commit ref")
	}

	var c commit
	query, err := g.getJSON(ctx, "commits/"+req.Ref, nil, &c)
	if err != nil {
		return nil, err
	}

	files := make([]string, 0, len(c.Files))
	for _, f := range c.Files {
		files = append(files, f.Filename)
	}

	var pointers []models.Pointer
	if c.HTMLURL != "" {
		pointers = append(pointers, models.Pointer{Title: "commit", URL: c.HTMLURL})
	}

	return &adapter.Result{
		Capability: adapter.CapVCS,
		Provider:   g.providerID,
		Kind:       models.KindChange,
		TimeRange:  req.TimeRange,
		Query:      query,
		Summary:    fmt.Sprintf("Commit %s touched %d files: %s", shortSHA(c.SHA), len(files), firstLine(c.Commit.Message)),
		Records: []adapter.RawRecord{{
			Timestamp: c.Commit.Author.Date,
			Message:   firstLine(c.Commit.Message),
			Signature: c.SHA,
			Attrs: map[string]string{
				"sha":    c.SHA,
				"author": c.Commit.Author.Name,
				"files":  strings.Join(files, ","),
			},
		}},
		Pointers: pointers,
		Tags:     []string{"changes", "metadata"},
	}, nil
}

func (g *ChangeLog) getJSON(ctx context.Context, path string, params url.Values, out interface{}) (string, error) {
	reqURL := fmt.Sprintf("%s/repos/%s/%s/%s", g.baseURL, g.owner, g.repo, path)
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return reqURL, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return reqURL, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		g.logger.Debug("request %s failed: %s", reqURL, string(body))
		return reqURL, fmt.Errorf("request failed with status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return reqURL, fmt.Errorf("decode response: %w", err)
	}
	return reqURL, nil
}

func firstLine(msg string) string {
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		return msg[:i]
	}
	return msg
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
