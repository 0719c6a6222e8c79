package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"scribe/internal/config"
	"scribe/internal/runstore"
	"scribe/internal/session"
)

func newResumeCommand(ctx *commandContext) *cobra.Command {
	var checkpointPath string

	cmd := &cobra.Command{
		Use:   "resume <project-id>",
		Short: "Resume an interrupted or failed session",
		Long: `Resume a session from its latest resumable checkpoint. A session that
ended in ERROR restarts at the state that failed; an interrupted one picks up
where it stopped. Use --checkpoint to rewind to an earlier snapshot.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			if err := cfg.RequireLLMKey(); err != nil {
				return err
			}

			logger, err := ctx.newLogger(cfg)
			if err != nil {
				return fmt.Errorf("setup logging: %w", err)
			}

			store, err := runstore.Open(cfg)
			if err != nil {
				return fmt.Errorf("open run store: %w", err)
			}
			defer store.Close()

			sess := session.New(cfg,
				session.WithLogger(logger),
				session.WithRecorder(store),
			)

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			resolved := strings.TrimSpace(checkpointPath)
			if resolved != "" {
				resolved, err = config.ExpandPath(resolved)
				if err != nil {
					return fmt.Errorf("resolve checkpoint path: %w", err)
				}
			}

			final, err := sess.ResumeFrom(signalCtx, args[0], resolved)
			if err != nil {
				return err
			}
			return reportOutcome(cmd.OutOrStdout(), sess, final)
		},
	}

	cmd.Flags().StringVar(&checkpointPath, "checkpoint", "", "Resume from a specific checkpoint file")
	return cmd
}
