// Package collect fans out evidence queries across a subject's bound
// capabilities. Collection is gap-tolerant: a capability that cannot be
// resolved or queried becomes an EvidenceGap, never a failed
// investigation. Only caller cancellation aborts a batch.
package collect

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"inquest/internal/adapter"
	"inquest/internal/logging"
	"inquest/internal/metrics"
	"inquest/internal/models"
	"inquest/internal/registry"
)

// Task is one planned adapter query within a collection pass.
type Task struct {
	Capability adapter.Capability
	Request    adapter.Request
}

// Batch is the outcome of one collection pass: successful raw results in
// capability priority order, plus a gap per failed capability.
type Batch struct {
	Results []*adapter.Result
	Gaps    []models.EvidenceGap
}

// Collector executes collection passes against one capability registry.
type Collector struct {
	registry *registry.Registry
	timeout  time.Duration
	cache    *lru.Cache[string, *adapter.Result]
	metrics  *metrics.Metrics
	logger   *logging.Logger
}

// New builds a Collector. timeout bounds each adapter call; cacheSize
// bounds the query result cache (repeat windows within one process hit
// the cache instead of the provider).
func New(reg *registry.Registry, timeout time.Duration, cacheSize int, m *metrics.Metrics) (*Collector, error) {
	cache, err := lru.New[string, *adapter.Result](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create query cache: %w", err)
	}
	return &Collector{
		registry: reg,
		timeout:  timeout,
		cache:    cache,
		metrics:  m,
		logger:   logging.GetLogger("collect"),
	}, nil
}

// Collect runs all tasks concurrently and assembles the batch. Per-task
// failures become gaps; the returned error is non-nil only when ctx is
// cancelled, in which case the partial batch is discarded.
func (c *Collector) Collect(ctx context.Context, subject, environment string, tasks []Task) (*Batch, error) {
	type slot struct {
		result *adapter.Result
		gap    *models.EvidenceGap
	}
	slots := make([]slot, len(tasks))

	g, gctx := errgroup.WithContext(ctx)
	for i, task := range tasks {
		g.Go(func() error {
			res, gap := c.runTask(gctx, subject, environment, task)
			slots[i] = slot{result: res, gap: gap}
			return nil
		})
	}
	// Task failures are recorded in their slots, never returned.
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		c.logger.Warn("collection pass cancelled, discarding %d tasks", len(tasks))
		return nil, err
	}

	batch := &Batch{}
	for _, s := range slots {
		if s.result != nil {
			batch.Results = append(batch.Results, s.result)
		}
		if s.gap != nil {
			batch.Gaps = append(batch.Gaps, *s.gap)
		}
	}

	// Stable order: capability priority first, task order within one
	// capability. Evidence ids downstream depend on this.
	sort.SliceStable(batch.Results, func(i, j int) bool {
		return adapter.PriorityIndex(batch.Results[i].Capability) <
			adapter.PriorityIndex(batch.Results[j].Capability)
	})
	sort.SliceStable(batch.Gaps, func(i, j int) bool {
		return adapter.PriorityIndex(adapter.Capability(batch.Gaps[i].Capability)) <
			adapter.PriorityIndex(adapter.Capability(batch.Gaps[j].Capability))
	})

	c.logger.Info("collection pass complete: %d results, %d gaps", len(batch.Results), len(batch.Gaps))
	return batch, nil
}

// runTask resolves and queries one capability. Exactly one of the return
// values is non-nil unless the pass was cancelled.
func (c *Collector) runTask(ctx context.Context, subject, environment string, task Task) (*adapter.Result, *models.EvidenceGap) {
	a, err := c.registry.Adapter(subject, environment, task.Capability)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil
		}
		c.logger.Warn("capability %s unavailable: %v", task.Capability, err)
		c.metrics.RecordEvidenceGap(string(task.Capability))
		gap := &models.EvidenceGap{
			Capability: string(task.Capability),
			Reason:     err.Error(),
		}
		if be, ok := models.AsBindingError(err); ok {
			gap.Provider = be.Provider
		}
		return nil, gap
	}

	key := cacheKey(a.Provider(), task.Request)
	if cached, ok := c.cache.Get(key); ok {
		c.logger.Debug("cache hit for provider %s (%s)", a.Provider(), task.Capability)
		return cached, nil
	}

	res, err := c.query(ctx, a, task)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil
		}
		c.metrics.RecordEvidenceGap(string(task.Capability))
		return nil, &models.EvidenceGap{
			Capability: string(task.Capability),
			Provider:   a.Provider(),
			Reason:     err.Error(),
		}
	}

	c.cache.Add(key, res)
	return res, nil
}

// query runs one bounded adapter call, retrying once on timeout or
// transient failure. Semantic failures are never retried.
func (c *Collector) query(ctx context.Context, a adapter.Adapter, task Task) (*adapter.Result, error) {
	res, err := c.queryOnce(ctx, a, task.Request)
	if err == nil {
		c.metrics.RecordAdapterCall(string(task.Capability), "ok")
		return res, nil
	}

	aerr := adapter.Classify(err, a.Provider(), task.Capability)
	if !aerr.Retryable() || ctx.Err() != nil {
		c.metrics.RecordAdapterCall(string(task.Capability), "error")
		return nil, aerr
	}

	c.logger.Warn("retrying %s after %s failure: %v", a.Provider(), aerr.Kind, err)
	c.metrics.RecordAdapterCall(string(task.Capability), "retried")

	res, err = c.queryOnce(ctx, a, task.Request)
	if err != nil {
		c.metrics.RecordAdapterCall(string(task.Capability), "error")
		return nil, adapter.Classify(err, a.Provider(), task.Capability)
	}
	c.metrics.RecordAdapterCall(string(task.Capability), "ok")
	return res, nil
}

func (c *Collector) queryOnce(ctx context.Context, a adapter.Adapter, req adapter.Request) (*adapter.Result, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return a.Query(callCtx, req)
}

func cacheKey(provider string, req adapter.Request) string {
	var b strings.Builder
	b.WriteString(provider)
	b.WriteByte('|')
	b.WriteString(string(req.Intent))
	b.WriteByte('|')
	b.WriteString(req.Ref)
	b.WriteByte('|')
	b.WriteString(req.TimeRange.Start.UTC().Format(time.RFC3339))
	b.WriteByte('|')
	b.WriteString(req.TimeRange.End.UTC().Format(time.RFC3339))

	keys := make([]string, 0, len(req.Params))
	for k := range req.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteByte('|')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(req.Params[k])
	}
	return b.String()
}
