package victorialogs

import (
	"context"
	"fmt"
	"os"
	"time"

	"inquest/internal/adapter"
	"inquest/internal/kb"
	"inquest/internal/models"
)

// LogStore adapts a VictoriaLogs instance to the log_store capability.
type LogStore struct {
	providerID string
	client     *Client
}

// New constructs a LogStore from a catalog provider instance.
// Config keys:
//   - base_url:      instance URL, or
//   - base_url_env:  name of the environment variable carrying the URL
//   - token_env:     optional environment variable carrying a bearer token
func New(instance kb.ProviderInstance, queryTimeout time.Duration) (adapter.Adapter, error) {
	baseURL, err := resolveConfigURL(instance)
	if err != nil {
		return nil, err
	}

	token := ""
	if tokenEnv, ok := instance.Config["token_env"].(string); ok && tokenEnv != "" {
		token = os.Getenv(tokenEnv)
	}

	return &LogStore{
		providerID: instance.ID,
		client:     NewClient(baseURL, token, queryTimeout),
	}, nil
}

func resolveConfigURL(instance kb.ProviderInstance) (string, error) {
	if u, ok := instance.Config["base_url"].(string); ok && u != "" {
		return u, nil
	}
	if envName, ok := instance.Config["base_url_env"].(string); ok && envName != "" {
		if u := os.Getenv(envName); u != "" {
			return u, nil
		}
		return "", fmt.Errorf("provider %q: environment variable %q is not set", instance.ID, envName)
	}
	return "", fmt.Errorf("provider %q: config requires base_url or base_url_env", instance.ID)
}

// Provider implements adapter.Adapter.
func (s *LogStore) Provider() string { return s.providerID }

// Query implements adapter.Adapter for the samples and signature_counts
// intents.
func (s *LogStore) Query(ctx context.Context, req adapter.Request) (*adapter.Result, error) {
	switch req.Intent {
	case adapter.IntentSignatureCounts:
		return s.querySignatureCounts(ctx, req)
	case adapter.IntentSamples, "":
		return s.querySamples(ctx, req)
	default:
		return nil, fmt.Errorf("log_store does not support intent %q", req.Intent)
	}
}

func (s *LogStore) querySamples(ctx context.Context, req adapter.Request) (*adapter.Result, error) {
	query := BuildSamplesQuery(req.Subject, req.Params, req.TimeRange, req.Limit)
	entries, err := s.client.QueryLogs(ctx, query, req.Limit)
	if err != nil {
		return nil, err
	}

	records := make([]adapter.RawRecord, 0, len(entries))
	for _, e := range entries {
		ts, _ := time.Parse(time.RFC3339Nano, e.Time)
		records = append(records, adapter.RawRecord{
			Timestamp: ts,
			Message:   e.Message,
			Signature: e.Fields["error.type"],
			Attrs:     e.Fields,
		})
	}

	return &adapter.Result{
		Capability: adapter.CapLogStore,
		Provider:   s.providerID,
		Kind:       models.KindLog,
		TimeRange:  req.TimeRange,
		Query:      query,
		Summary:    fmt.Sprintf("Collected %d log samples for the time window.", len(records)),
		Records:    records,
		Pointers:   []models.Pointer{{Title: "logsql query", URL: query}},
		Tags:       []string{"logs", "samples"},
	}, nil
}

func (s *LogStore) querySignatureCounts(ctx context.Context, req adapter.Request) (*adapter.Result, error) {
	query := BuildSignatureCountsQuery(req.Subject, req.Params, req.TimeRange, req.Limit)
	entries, err := s.client.QueryLogs(ctx, query, req.Limit)
	if err != nil {
		return nil, err
	}

	// Each aggregation row carries the signature and its hit count; the
	// normalizer recomputes top_signals from these records.
	records := make([]adapter.RawRecord, 0, len(entries))
	for _, e := range entries {
		sig := e.Fields["error.type"]
		if sig == "" {
			sig = e.Message
		}
		records = append(records, adapter.RawRecord{
			Message:   e.Message,
			Signature: sig,
			Attrs:     e.Fields,
		})
	}

	return &adapter.Result{
		Capability: adapter.CapLogStore,
		Provider:   s.providerID,
		Kind:       models.KindLog,
		TimeRange:  req.TimeRange,
		Query:      query,
		Summary:    "Top error signatures computed over the time window.",
		Records:    records,
		Pointers:   []models.Pointer{{Title: "logsql query", URL: query}},
		Tags:       []string{"logs", "signatures"},
	}, nil
}
