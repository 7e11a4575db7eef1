package githubactions

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"inquest/internal/adapter"
	"inquest/internal/kb"
	"inquest/internal/models"
)

type workflowRun struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	HeadBranch string    `json:"head_branch"`
	HeadSHA    string    `json:"head_sha"`
	Status     string    `json:"status"`
	Conclusion string    `json:"conclusion"`
	Event      string    `json:"event"`
	HTMLURL    string    `json:"html_url"`
	CreatedAt  time.Time `json:"created_at"`
}

type workflowRunList struct {
	TotalCount   int           `json:"total_count"`
	WorkflowRuns []workflowRun `json:"workflow_runs"`
}

// BuildTracker lists GitHub Actions workflow runs for the build_tracker
// capability.
type BuildTracker struct {
	providerID string
	client     *Client
}

// NewBuildTracker constructs a BuildTracker from a catalog provider
// instance. See clientFromInstance for the config keys.
func NewBuildTracker(instance kb.ProviderInstance, timeout time.Duration) (adapter.Adapter, error) {
	c, err := clientFromInstance(instance, timeout)
	if err != nil {
		return nil, err
	}
	return &BuildTracker{providerID: instance.ID, client: c}, nil
}

// Provider implements adapter.Adapter.
func (b *BuildTracker) Provider() string { return b.providerID }

// Query implements adapter.Adapter for the list and metadata intents.
func (b *BuildTracker) Query(ctx context.Context, req adapter.Request) (*adapter.Result, error) {
	switch req.Intent {
	case adapter.IntentMetadata:
		return b.queryMetadata(ctx, req)
	case adapter.IntentList, "":
		return b.queryList(ctx, req)
	default:
		return nil, fmt.Errorf("build_tracker does not support intent %q", req.Intent)
	}
}

func (b *BuildTracker) queryList(ctx context.Context, req adapter.Request) (*adapter.Result, error) {
	params := url.Values{}
	params.Set("per_page", "100")
	params.Set("created", fmt.Sprintf("%s..%s",
		req.TimeRange.Start.UTC().Format(time.RFC3339),
		req.TimeRange.End.UTC().Format(time.RFC3339)))
	if branch := req.Params["branch"]; branch != "" {
		params.Set("branch", branch)
	}

	var list workflowRunList
	query, err := b.client.getJSON(ctx, "actions/runs", params, &list)
	if err != nil {
		return nil, err
	}

	records := make([]adapter.RawRecord, 0, len(list.WorkflowRuns))
	refs := make([]string, 0, len(list.WorkflowRuns))
	var pointers []models.Pointer
	for _, run := range list.WorkflowRuns {
		if req.Limit > 0 && len(records) >= req.Limit {
			break
		}
		records = append(records, adapter.RawRecord{
			Timestamp: run.CreatedAt,
			Message: fmt.Sprintf("%s run %s on %s@%s",
				run.Name, conclusionOrStatus(run), run.HeadBranch, shortSHA(run.HeadSHA)),
			Signature: run.HeadSHA,
			Attrs: map[string]string{
				"id":         strconv.FormatInt(run.ID, 10),
				"name":       run.Name,
				"branch":     run.HeadBranch,
				"sha":        run.HeadSHA,
				"status":     run.Status,
				"conclusion": run.Conclusion,
				"event":      run.Event,
			},
		})
		refs = append(refs, strconv.FormatInt(run.ID, 10))
		if run.Conclusion == "failure" && run.HTMLURL != "" && len(pointers) == 0 {
			pointers = append(pointers, models.Pointer{Title: "failed workflow run", URL: run.HTMLURL})
		}
	}

	return &adapter.Result{
		Capability: adapter.CapBuildTracker,
		Provider:   b.providerID,
		Kind:       models.KindBuild,
		TimeRange:  req.TimeRange,
		Query:      query,
		Summary:    fmt.Sprintf("Found %d workflow runs in the time window.", len(records)),
		Records:    records,
		Refs:       refs,
		Pointers:   pointers,
		Tags:       []string{"builds"},
	}, nil
}

func (b *BuildTracker) queryMetadata(ctx context.Context, req adapter.Request) (*adapter.Result, error) {
	if req.Ref == "" {
		return nil, fmt.Errorf("metadata request requires a run ref")
	}

	var run workflowRun
	query, err := b.client.getJSON(ctx, "actions/runs/"+req.Ref, nil, &run)
	if err != nil {
		return nil, err
	}

	var pointers []models.Pointer
	if run.HTMLURL != "" {
		pointers = append(pointers, models.Pointer{Title: "workflow run", URL: run.HTMLURL})
	}

	return &adapter.Result{
		Capability: adapter.CapBuildTracker,
		Provider:   b.providerID,
		Kind:       models.KindBuild,
		TimeRange:  req.TimeRange,
		Query:      query,
		Summary:    fmt.Sprintf("Run %s (%s) concluded %s.", req.Ref, run.Name, conclusionOrStatus(run)),
		Records: []adapter.RawRecord{{
			Timestamp: run.CreatedAt,
			Message: fmt.Sprintf("%s run %s on %s@%s",
				run.Name, conclusionOrStatus(run), run.HeadBranch, shortSHA(run.HeadSHA)),
			Signature: run.HeadSHA,
			Attrs: map[string]string{
				"id":         strconv.FormatInt(run.ID, 10),
				"name":       run.Name,
				"branch":     run.HeadBranch,
				"sha":        run.HeadSHA,
				"status":     run.Status,
				"conclusion": run.Conclusion,
				"event":      run.Event,
			},
		}},
		Pointers: pointers,
		Tags:     []string{"builds", "metadata"},
	}, nil
}

func conclusionOrStatus(run workflowRun) string {
	if run.Conclusion != "" {
		return run.Conclusion
	}
	return run.Status
}
