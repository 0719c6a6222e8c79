package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"scribe/internal/flow"
)

func newCheckpointsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "checkpoints <project-id>",
		Short: "List the saved checkpoints for a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			projectID := args[0]
			checkpointDir := cfg.CheckpointDir(projectID)
			if _, err := os.Stat(checkpointDir); err != nil {
				return fmt.Errorf("no checkpoints for project %s", projectID)
			}
			store, err := flow.NewCheckpointStore(checkpointDir)
			if err != nil {
				return err
			}
			infos, err := store.List()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(infos) == 0 {
				fmt.Fprintf(out, "No checkpoints recorded for project %s.\n", projectID)
				return nil
			}

			rows := make([][]string, 0, len(infos))
			for _, info := range infos {
				rows = append(rows, []string{
					strconv.Itoa(info.Index),
					string(info.State),
					info.CheckpointedAt.Local().Format("2006-01-02 15:04:05"),
					info.Path,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Index", "State", "Written", "Path"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}
}
