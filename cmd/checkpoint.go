package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/teemow/inboxtriage/internal/checkpoint"
	"github.com/teemow/inboxtriage/internal/triage"
)

func newCheckpointCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Inspect or discard the checkpoint of an interrupted run",
	}
	cmd.AddCommand(newCheckpointShowCmd())
	cmd.AddCommand(newCheckpointClearCmd())
	return cmd
}

func newCheckpointShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the progress recorded in the checkpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, nil)
			if err != nil {
				return err
			}
			return showCheckpoint(cmd.OutOrStdout(), checkpoint.NewStore(cfg.CheckpointPath()))
		},
	}
}

func newCheckpointClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete the checkpoint so the next run starts fresh",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, nil)
			if err != nil {
				return err
			}
			store := checkpoint.NewStore(cfg.CheckpointPath())
			if !store.Exists() {
				fmt.Fprintln(cmd.OutOrStdout(), "No checkpoint found.")
				return nil
			}
			if err := store.Clear(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", store.Path())
			return nil
		},
	}
}

func showCheckpoint(w io.Writer, store *checkpoint.Store) error {
	state, err := store.Load()
	if errors.Is(err, checkpoint.ErrNotFound) {
		fmt.Fprintln(w, "No checkpoint found.")
		return nil
	}
	if err != nil {
		return err
	}

	counts := state.Counts()
	fmt.Fprintf(w, "Checkpoint: %s\n", store.Path())
	fmt.Fprintf(w, "Progress: %d/%d classified\n", state.Done(), state.Total())
	fmt.Fprintf(w, "Important: %d\n", counts[triage.Important])
	fmt.Fprintf(w, "Low Priority: %d\n", counts[triage.LowPriority])
	fmt.Fprintf(w, "Labeled: %d\n", len(state.Labeled))
	fmt.Fprintln(w, "Continue with: inboxtriage run --resume")
	return nil
}
