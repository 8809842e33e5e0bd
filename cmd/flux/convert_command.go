package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"fluxmedia/internal/operation"
	"fluxmedia/internal/request"
	"fluxmedia/internal/services"
)

func newConvertCommand(ctx *commandContext) *cobra.Command {
	var format string
	var audioOnly bool
	var force bool
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "convert <artifact>",
		Short: "Convert a previously downloaded file",
		Long: "Convert a file the backend already produced. The path must appear as the\n" +
			"output of an entry in the backend history unless --force is given.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			artifact := strings.TrimSpace(args[0])
			if artifact == "" {
				return &request.ValidationError{Field: "artifact", Reason: "a file path is required"}
			}

			sess, err := ctx.openSession()
			if err != nil {
				return err
			}
			defer sess.Close()

			if !force {
				sess.history.Refresh(cmd.Context())
				if !sess.history.HasArtifact(artifact) {
					return services.Wrap(services.ErrPrecondition, "cli", "convert",
						fmt.Sprintf("%s is not an output listed in history (use --force to convert it anyway)", artifact), nil)
				}
			}

			lock, err := acquireLock(sess.cfg)
			if err != nil {
				return err
			}
			defer lock.Release()

			out := cmd.OutOrStdout()
			ctrl := sess.controller(operation.WithArtifact(artifact))
			if !jsonOut {
				ctrl.OnTransition(transitionPrinter(out, shouldColorize(out)))
			}

			selected := format
			if strings.TrimSpace(selected) == "" {
				selected = sess.cfg.Defaults.Format
			}
			state, err := ctrl.SubmitConvert(cmd.Context(), audioOnly, selected)
			if err != nil {
				return err
			}

			if jsonOut {
				if err := writeJSON(cmd, newOperationOutput(state, sess.client)); err != nil {
					return err
				}
			} else {
				printArtifact(out, state, sess.client)
			}
			if state.Phase == operation.PhaseFailed {
				return errAlreadyReported
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "", "Target format; defaults to config")
	cmd.Flags().BoolVar(&audioOnly, "audio-only", false, "Convert to audio ("+request.AudioOnlyOutput+")")
	cmd.Flags().BoolVar(&force, "force", false, "Skip the history check")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}
