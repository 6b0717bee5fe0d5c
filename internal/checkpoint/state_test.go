package checkpoint

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/inboxtriage/internal/triage"
)

func TestRunState_SetMessageIDsDeduplicates(t *testing.T) {
	state := NewRunState()
	state.SetMessageIDs([]string{"a", "b", "a", "c", "b"})
	assert.Equal(t, []string{"a", "b", "c"}, state.AllMessageIDs)
	assert.Equal(t, 3, state.Total())
}

func TestRunState_RecordNeverOverwrites(t *testing.T) {
	state := NewRunState()
	state.SetMessageIDs([]string{"m1"})

	assert.True(t, state.Record("m1", triage.LowPriority))
	assert.False(t, state.Record("m1", triage.Important))
	assert.Equal(t, triage.LowPriority, state.Processed["m1"])
	assert.Equal(t, 1, state.Done())
}

func TestRunState_Unlabeled(t *testing.T) {
	state := NewRunState()
	state.SetMessageIDs([]string{"m1", "m2", "m3", "m4"})
	state.Record("m4", triage.Important)
	state.Record("m1", triage.Important)
	state.Record("m2", triage.LowPriority)
	state.MarkLabeled([]string{"m1"})

	assert.Equal(t, []string{"m4"}, state.Unlabeled(triage.Important))
	assert.Equal(t, []string{"m2"}, state.Unlabeled(triage.LowPriority))

	state.MarkLabeled([]string{"m4", "m2"})
	assert.Empty(t, state.Unlabeled(triage.Important))
	assert.Empty(t, state.Unlabeled(triage.LowPriority))
}

func TestRunState_Counts(t *testing.T) {
	state := NewRunState()
	state.SetMessageIDs([]string{"m1", "m2", "m3"})
	state.Record("m1", triage.Important)
	state.Record("m2", triage.LowPriority)
	state.Record("m3", triage.LowPriority)

	counts := state.Counts()
	assert.Equal(t, 1, counts[triage.Important])
	assert.Equal(t, 2, counts[triage.LowPriority])
}

func TestRunState_JSONLayout(t *testing.T) {
	state := NewRunState()
	state.SetMessageIDs([]string{"m2", "m1"})
	state.Record("m1", triage.LowPriority)
	state.Record("m2", triage.Important)
	state.MarkLabeled([]string{"m1", "m2"})

	data, err := json.Marshal(state)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, []interface{}{"m2", "m1"}, raw["all_message_ids"])
	assert.Equal(t, map[string]interface{}{"m1": "low_priority", "m2": "important"}, raw["processed"])
	assert.Equal(t, []interface{}{"m2", "m1"}, raw["labeled"])
}

func TestRunState_EmptyStateEncodesEmptyCollections(t *testing.T) {
	data, err := json.Marshal(NewRunState())
	require.NoError(t, err)
	assert.JSONEq(t, `{"all_message_ids": [], "processed": {}, "labeled": []}`, string(data))
}
