package engine

import (
	"sort"
	"strings"
	"time"

	"inquest/internal/adapter"
	"inquest/internal/collect"
	"inquest/internal/models"
)

// Buffered query windows. Deployments and builds that caused an incident
// usually land shortly before it; changes can sit in the tree for hours
// before a deploy picks them up.
const (
	deployWindowBuffer   = 30 * time.Minute
	changeWindowLookback = 6 * time.Hour
)

// windowFor widens the incident window per capability.
func windowFor(cap adapter.Capability, tr models.TimeRange) models.TimeRange {
	switch cap {
	case adapter.CapDeployTracker, adapter.CapBuildTracker:
		return models.TimeRange{
			Start: tr.Start.Add(-deployWindowBuffer),
			End:   tr.End.Add(deployWindowBuffer),
		}
	case adapter.CapVCS:
		return models.TimeRange{
			Start: tr.Start.Add(-changeWindowLookback),
			End:   tr.End,
		}
	default:
		return tr
	}
}

// intentFor is the default intent per capability for a listing pass.
func intentFor(cap adapter.Capability) adapter.Intent {
	switch cap {
	case adapter.CapLogStore:
		return adapter.IntentSamples
	case adapter.CapDeployTracker, adapter.CapBuildTracker, adapter.CapVCS:
		return adapter.IntentList
	default:
		return adapter.IntentSamples
	}
}

// planTasks builds one collection pass over the given capabilities.
func planTasks(incident models.IncidentInput, caps []adapter.Capability, limit int) []collect.Task {
	tasks := make([]collect.Task, 0, len(caps))
	for _, cap := range caps {
		tasks = append(tasks, collect.Task{
			Capability: cap,
			Request: adapter.Request{
				Subject:     incident.Subject,
				Environment: incident.Environment,
				TimeRange:   windowFor(cap, incident.TimeRange),
				Intent:      intentFor(cap),
				Limit:       limit,
			},
		})
	}
	return tasks
}

// capabilityKeywords maps validation/contradiction vocabulary to the
// capability worth collecting next. The table is fixed so the targeted
// pass is reproducible.
var capabilityKeywords = map[adapter.Capability][]string{
	adapter.CapLogStore:      {"log", "error", "exception", "stack trace"},
	adapter.CapMetricsStore:  {"metric", "latency", "saturation", "cpu", "memory", "dashboard"},
	adapter.CapTraceStore:    {"trace", "span"},
	adapter.CapAlerting:      {"alert", "page"},
	adapter.CapDeployTracker: {"deploy", "rollback", "release", "rollout"},
	adapter.CapBuildTracker:  {"build", "pipeline", "ci "},
	adapter.CapVCS:           {"commit", "change", "pull request", "merge", "diff"},
	adapter.CapRuntime:       {"pod", "restart", "oom", "crashloop", "event"},
}

// targetedCapabilities infers which bound capabilities the leading
// candidate's validations and contradictions point at. Only capabilities
// in bound are eligible; the result is in collection priority order.
func targetedCapabilities(hyp models.Hypothesis, bound []adapter.Capability) []adapter.Capability {
	var text strings.Builder
	for _, v := range hyp.Validations {
		text.WriteString(strings.ToLower(v))
		text.WriteByte('\n')
	}
	for _, c := range hyp.Contradictions {
		text.WriteString(strings.ToLower(c))
		text.WriteByte('\n')
	}
	haystack := text.String()

	eligible := make(map[adapter.Capability]bool, len(bound))
	for _, cap := range bound {
		eligible[cap] = true
	}

	var out []adapter.Capability
	for cap, keywords := range capabilityKeywords {
		if !eligible[cap] {
			continue
		}
		for _, kw := range keywords {
			if strings.Contains(haystack, kw) {
				out = append(out, cap)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return adapter.PriorityIndex(out[i]) < adapter.PriorityIndex(out[j])
	})
	return out
}
