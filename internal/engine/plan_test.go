package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inquest/internal/adapter"
	"inquest/internal/logging"
	"inquest/internal/models"
)

func TestWindowForBuffersDeployAndChange(t *testing.T) {
	tr := models.TimeRange{Start: onset, End: onset.Add(30 * time.Minute)}

	deploy := windowFor(adapter.CapDeployTracker, tr)
	assert.Equal(t, onset.Add(-30*time.Minute), deploy.Start)
	assert.Equal(t, tr.End.Add(30*time.Minute), deploy.End)

	change := windowFor(adapter.CapVCS, tr)
	assert.Equal(t, onset.Add(-6*time.Hour), change.Start)
	assert.Equal(t, tr.End, change.End)

	logs := windowFor(adapter.CapLogStore, tr)
	assert.Equal(t, tr, logs)
}

func TestPlanTasks(t *testing.T) {
	incident := testIncident()
	incident.Environment = "prod"

	tasks := planTasks(incident, []adapter.Capability{adapter.CapLogStore, adapter.CapDeployTracker}, 40)
	require.Len(t, tasks, 2)
	assert.Equal(t, adapter.IntentSamples, tasks[0].Request.Intent)
	assert.Equal(t, adapter.IntentList, tasks[1].Request.Intent)
	assert.Equal(t, 40, tasks[0].Request.Limit)
	assert.Equal(t, "payments-api", tasks[0].Request.Subject)
}

func TestTargetedCapabilities(t *testing.T) {
	bound := []adapter.Capability{
		adapter.CapLogStore, adapter.CapDeployTracker, adapter.CapVCS,
	}

	tests := []struct {
		name string
		hyp  models.Hypothesis
		want []adapter.Capability
	}{
		{
			name: "deploy keyword in validations",
			hyp:  models.Hypothesis{Validations: []string{"Roll back the deploy"}},
			want: []adapter.Capability{adapter.CapDeployTracker},
		},
		{
			name: "multiple keywords ordered by priority",
			hyp: models.Hypothesis{
				Validations:    []string{"diff the suspect commit", "check the error logs"},
				Contradictions: []string{"the rollout finished cleanly"},
			},
			want: []adapter.Capability{adapter.CapLogStore, adapter.CapDeployTracker, adapter.CapVCS},
		},
		{
			name: "unbound capability is skipped",
			hyp:  models.Hypothesis{Validations: []string{"inspect the trace spans"}},
			want: nil,
		},
		{
			name: "no keywords",
			hyp:  models.Hypothesis{Validations: []string{"ask the on-call"}},
			want: nil,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, targetedCapabilities(tc.hyp, bound))
		})
	}
}

func TestStateTransitions(t *testing.T) {
	inv := &investigation{state: StateCollecting, logger: logging.GetLogger("engine.test")}

	require.NoError(t, inv.transition(StateGenerating))
	require.NoError(t, inv.transition(StateScoring))
	require.NoError(t, inv.transition(StateDeciding))
	require.NoError(t, inv.transition(StateCollecting))
	require.Error(t, inv.transition(StateDone))

	require.NoError(t, inv.transition(StateGenerating))
	require.NoError(t, inv.transition(StateScoring))
	require.NoError(t, inv.transition(StateDeciding))
	require.NoError(t, inv.transition(StateExhausted))
	assert.True(t, inv.state.Terminal())
	require.Error(t, inv.transition(StateCollecting))
}
