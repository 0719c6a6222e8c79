package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"scribe/internal/flow"
	"scribe/internal/runstore"
	"scribe/internal/services"
	"scribe/internal/session"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var (
		inputType     string
		formats       []string
		maxIterations int
		autoApprove   bool
	)

	cmd := &cobra.Command{
		Use:   "run <project-name> <source>",
		Short: "Produce content from a source",
		Long: `Run a full production session: acquire a transcript, research the material,
draft the selected output formats, and package the results.

The source is a URL for --type youtube, or a local file path for --type audio
and --type text.

Examples:
  scribe run "Conference Talk" https://youtube.com/watch?v=abc --type youtube
  scribe run "Team Meeting" ./recording.mp3 --type audio --format podcast
  scribe run "Draft Notes" ./notes.txt --type text --format article --format social`,
		Args: cobra.ExactArgs(2),
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

			reviewer := session.AutoApprove
			if !autoApprove && isTerminalWriter(cmd.OutOrStdout()) {
				reviewer = promptReviewer(cmd.InOrStdin(), cmd.OutOrStdout())
			}

			sess := session.New(cfg,
				session.WithLogger(logger),
				session.WithRecorder(store),
				session.WithReviewer(reviewer),
			)

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			final, err := sess.Start(signalCtx, session.StartRequest{
				ProjectName:   args[0],
				InputType:     flow.InputType(strings.ToLower(strings.TrimSpace(inputType))),
				InputSource:   args[1],
				Formats:       formats,
				MaxIterations: maxIterations,
			})
			if err != nil {
				return err
			}
			return reportOutcome(cmd.OutOrStdout(), sess, final)
		},
	}

	cmd.Flags().StringVarP(&inputType, "type", "t", "youtube", "Input type: youtube, audio, or text")
	cmd.Flags().StringArrayVarP(&formats, "format", "f", session.ValidFormats(), "Output format to produce (repeatable)")
	cmd.Flags().IntVar(&maxIterations, "max-iterations", 0, "Override the state machine iteration ceiling")
	cmd.Flags().BoolVar(&autoApprove, "auto-approve", false, "Accept drafted articles without interactive review")

	return cmd
}

// reportOutcome prints the terminal state and maps ERROR to a non-zero exit.
func reportOutcome(out io.Writer, sess *session.Session, final flow.Context) error {
	switch final.CurrentState {
	case flow.StateComplete:
		fmt.Fprintf(out, "Session complete.\n")
		if final.PackagePath != "" {
			fmt.Fprintf(out, "Package: %s\n", final.PackagePath)
		}
		return nil
	case flow.StateError:
		fmt.Fprintf(out, "Session failed in state %s.\n", errorOrigin(final))
		if final.LastError != nil {
			fmt.Fprintf(out, "Cause: %s\n", final.LastError.Message)
		}
		fmt.Fprintf(out, "Checkpoints: %s\n", sess.CheckpointDir(final.ProjectID))
		fmt.Fprintf(out, "Resume with: scribe resume %s\n", final.ProjectID)
		return fmt.Errorf("session ended in ERROR")
	default:
		return fmt.Errorf("session stopped in unexpected state %s", final.CurrentState)
	}
}

func errorOrigin(final flow.Context) flow.State {
	if final.LastError != nil {
		return final.LastError.State
	}
	return final.CurrentState
}

// promptReviewer asks the operator to approve a drafted article. A quit
// answer ends the session gracefully; anything other than an explicit yes is
// treated as a regeneration request, with the typed line carried as feedback.
func promptReviewer(in io.Reader, out io.Writer) session.ReviewFunc {
	reader := bufio.NewReader(in)
	return func(ctx context.Context, articlePath string) (session.ReviewDecision, error) {
		fmt.Fprintf(out, "\nArticle drafted: %s\n", articlePath)
		fmt.Fprint(out, "Approve it? [y = accept, q = stop here, anything else = regenerate with feedback]: ")

		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return session.ReviewDecision{}, fmt.Errorf("read review input: %w", err)
		}
		answer := strings.TrimSpace(line)
		switch strings.ToLower(answer) {
		case "y", "yes", "":
			return session.ReviewDecision{Approved: true}, nil
		case "q", "quit":
			return session.ReviewDecision{}, services.Wrap(services.ErrUserCancelled,
				"review", "prompt", "stopped at article review", nil)
		default:
			return session.ReviewDecision{Approved: false, Feedback: answer}, nil
		}
	}
}

func isTerminalWriter(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isTerminalFd(file.Fd())
}
