package cmd

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/inboxtriage/internal/checkpoint"
	"github.com/teemow/inboxtriage/internal/engine"
	"github.com/teemow/inboxtriage/internal/server"
	"github.com/teemow/inboxtriage/internal/triage"
)

func newDocsServerContext(t *testing.T) *server.ServerContext {
	t.Helper()
	store := checkpoint.NewStore(filepath.Join(t.TempDir(), "checkpoint.json"))
	sc, err := server.NewServerContext(context.Background(), docsEngine{}, store, nil, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Shutdown() })
	return sc
}

func savedStore(t *testing.T) *checkpoint.Store {
	t.Helper()
	store := checkpoint.NewStore(filepath.Join(t.TempDir(), "checkpoint.json"))
	state := checkpoint.NewRunState()
	state.SetMessageIDs([]string{"a", "b", "c"})
	state.Record("a", triage.Important)
	state.Record("b", triage.LowPriority)
	state.MarkLabeled([]string{"b"})
	require.NoError(t, store.Save(state))
	return store
}

func TestPrintSummary(t *testing.T) {
	tests := []struct {
		name string
		res  engine.Result
		want string
	}{
		{
			name: "completed",
			res:  engine.Result{RunID: "r1", Outcome: engine.OutcomeCompleted, Done: 5, Total: 5, ReportPath: "/out/report.html"},
			want: "Run r1 completed: 5 messages classified.\nReport: /out/report.html\n",
		},
		{
			name: "empty",
			res:  engine.Result{RunID: "r2", Outcome: engine.OutcomeEmpty},
			want: "Run r2 completed: nothing to do.\n",
		},
		{
			name: "stopped",
			res:  engine.Result{RunID: "r3", Outcome: engine.OutcomeStopped, Done: 2, Total: 9},
			want: "Run r3 stopped at 2/9. Continue with: inboxtriage run --resume\n",
		},
		{
			name: "failed",
			res:  engine.Result{RunID: "r4", Outcome: engine.OutcomeFailed, Done: 1, Total: 9, Err: errors.New("boom")},
			want: "Run r4 failed at 1/9. The checkpoint was kept.\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			printSummary(&buf, tt.res)
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestConfirmDiscard(t *testing.T) {
	t.Run("no checkpoint", func(t *testing.T) {
		store := checkpoint.NewStore(filepath.Join(t.TempDir(), "checkpoint.json"))
		assert.NoError(t, confirmDiscard(store, false, strings.NewReader("")))
	})

	t.Run("yes flag", func(t *testing.T) {
		assert.NoError(t, confirmDiscard(savedStore(t), true, strings.NewReader("")))
	})

	t.Run("not a terminal", func(t *testing.T) {
		err := confirmDiscard(savedStore(t), false, strings.NewReader(""))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "(2/3 done)")
		assert.Contains(t, err.Error(), "--resume")
		assert.NotErrorIs(t, err, errAborted)
	})
}

func TestShowCheckpoint(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, showCheckpoint(&buf, checkpoint.NewStore(filepath.Join(t.TempDir(), "none.json"))))
	assert.Equal(t, "No checkpoint found.\n", buf.String())

	buf.Reset()
	store := savedStore(t)
	require.NoError(t, showCheckpoint(&buf, store))
	out := buf.String()
	assert.Contains(t, out, "Checkpoint: "+store.Path())
	assert.Contains(t, out, "Progress: 2/3 classified")
	assert.Contains(t, out, "Important: 1")
	assert.Contains(t, out, "Low Priority: 1")
	assert.Contains(t, out, "Labeled: 1")
}

func TestConsoleObserver(t *testing.T) {
	var buf bytes.Buffer
	obs := consoleObserver(&buf)
	obs.OnLog("Found 3 messages.")
	obs.OnProgress(1, 3, triage.Important)
	obs.OnLog("Done!")
	assert.Equal(t, "Found 3 messages.\nDone!\n", buf.String())
}

func TestLoadConfig_FlagsOverride(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()

	cmd := &cobra.Command{Use: "test"}
	for _, name := range persistentBindings {
		cmd.Flags().String(name, "", "")
	}
	cmd.Flags().String("query", "", "")
	cmd.Flags().String("mode", "", "")
	require.NoError(t, cmd.Flags().Set("output-dir", dir))
	require.NoError(t, cmd.Flags().Set("query", "from:boss is:unread"))
	require.NoError(t, cmd.Flags().Set("mode", "sequential"))

	cfg, err := loadConfig(cmd, map[string]string{"query": "query", "pipeline.mode": "mode"})
	require.NoError(t, err)
	assert.Equal(t, "from:boss is:unread", cfg.Query)
	assert.Equal(t, "sequential", cfg.Pipeline.Mode)
	assert.Equal(t, filepath.Join(dir, "checkpoint.json"), cfg.CheckpointPath())
	assert.Equal(t, "AI/Important", cfg.Labels.Important)
}

func TestLoadConfig_InvalidFlag(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cmd := &cobra.Command{Use: "test"}
	for _, name := range persistentBindings {
		cmd.Flags().String(name, "", "")
	}
	cmd.Flags().String("mode", "", "")
	require.NoError(t, cmd.Flags().Set("mode", "parallel"))

	_, err := loadConfig(cmd, map[string]string{"pipeline.mode": "mode"})
	assert.Error(t, err)
}

func TestVersionCmd(t *testing.T) {
	var buf bytes.Buffer
	cmd := newVersionCmd()
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "inboxtriage version "+version+"\n", buf.String())
}
