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

// deployment is the subset of the GitHub deployments payload we read.
type deployment struct {
	ID          int64     `json:"id"`
	SHA         string    `json:"sha"`
	Ref         string    `json:"ref"`
	Environment string    `json:"environment"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

type deploymentStatus struct {
	State       string    `json:"state"`
	Description string    `json:"description"`
	LogURL      string    `json:"log_url"`
	CreatedAt   time.Time `json:"created_at"`
}

// DeployTracker lists GitHub deployments for the deploy_tracker capability.
type DeployTracker struct {
	providerID string
	client     *Client
}

// NewDeployTracker constructs a DeployTracker from a catalog provider
// instance. See clientFromInstance for the config keys.
func NewDeployTracker(instance kb.ProviderInstance, timeout time.Duration) (adapter.Adapter, error) {
	c, err := clientFromInstance(instance, timeout)
	if err != nil {
		return nil, err
	}
	return &DeployTracker{providerID: instance.ID, client: c}, nil
}

// Provider implements adapter.Adapter.
func (d *DeployTracker) Provider() string { return d.providerID }

// Query implements adapter.Adapter for the list and metadata intents.
func (d *DeployTracker) Query(ctx context.Context, req adapter.Request) (*adapter.Result, error) {
	switch req.Intent {
	case adapter.IntentMetadata:
		return d.queryMetadata(ctx, req)
	case adapter.IntentList, "":
		return d.queryList(ctx, req)
	default:
		return nil, fmt.Errorf("deploy_tracker does not support intent %q", req.Intent)
	}
}

func (d *DeployTracker) queryList(ctx context.Context, req adapter.Request) (*adapter.Result, error) {
	params := url.Values{}
	params.Set("per_page", "100")
	if req.Environment != "" {
		params.Set("environment", req.Environment)
	}

	var deployments []deployment
	query, err := d.client.getJSON(ctx, "deployments", params, &deployments)
	if err != nil {
		return nil, err
	}

	// The deployments endpoint has no time filter, so the window is
	// applied here.
	records := make([]adapter.RawRecord, 0, len(deployments))
	refs := make([]string, 0, len(deployments))
	for _, dep := range deployments {
		if dep.CreatedAt.Before(req.TimeRange.Start) || dep.CreatedAt.After(req.TimeRange.End) {
			continue
		}
		if req.Limit > 0 && len(records) >= req.Limit {
			break
		}
		records = append(records, adapter.RawRecord{
			Timestamp: dep.CreatedAt,
			Message:   fmt.Sprintf("deploy %s@%s to %s", dep.Ref, shortSHA(dep.SHA), dep.Environment),
			Signature: dep.SHA,
			Attrs: map[string]string{
				"id":          strconv.FormatInt(dep.ID, 10),
				"sha":         dep.SHA,
				"ref":         dep.Ref,
				"environment": dep.Environment,
				"description": dep.Description,
			},
		})
		refs = append(refs, strconv.FormatInt(dep.ID, 10))
	}

	return &adapter.Result{
		Capability: adapter.CapDeployTracker,
		Provider:   d.providerID,
		Kind:       models.KindDeployment,
		TimeRange:  req.TimeRange,
		Query:      query,
		Summary:    fmt.Sprintf("Found %d deployments in the time window.", len(records)),
		Records:    records,
		Refs:       refs,
		Tags:       []string{"deployments"},
	}, nil
}

func (d *DeployTracker) queryMetadata(ctx context.Context, req adapter.Request) (*adapter.Result, error) {
	if req.Ref == "" {
		return nil, fmt.Errorf("metadata request requires a deployment ref")
	}

	var statuses []deploymentStatus
	query, err := d.client.getJSON(ctx, "deployments/"+req.Ref+"/statuses", nil, &statuses)
	if err != nil {
		return nil, err
	}

	records := make([]adapter.RawRecord, 0, len(statuses))
	pointers := make([]models.Pointer, 0, 1)
	for _, st := range statuses {
		records = append(records, adapter.RawRecord{
			Timestamp: st.CreatedAt,
			Message:   fmt.Sprintf("deployment %s: %s", req.Ref, st.State),
			Signature: st.State,
			Attrs: map[string]string{
				"state":       st.State,
				"description": st.Description,
			},
		})
		if st.LogURL != "" && len(pointers) == 0 {
			pointers = append(pointers, models.Pointer{Title: "deployment log", URL: st.LogURL})
		}
	}

	summary := fmt.Sprintf("Deployment %s has no recorded statuses.", req.Ref)
	if len(statuses) > 0 {
		summary = fmt.Sprintf("Deployment %s latest state: %s.", req.Ref, statuses[0].State)
	}

	return &adapter.Result{
		Capability: adapter.CapDeployTracker,
		Provider:   d.providerID,
		Kind:       models.KindDeployment,
		TimeRange:  req.TimeRange,
		Query:      query,
		Summary:    summary,
		Records:    records,
		Pointers:   pointers,
		Tags:       []string{"deployments", "metadata"},
	}, nil
}
