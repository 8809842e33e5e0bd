package main

import (
	"strings"

	"github.com/spf13/cobra"

	"fluxmedia/internal/operation"
	"fluxmedia/internal/request"
)

type downloadFlags struct {
	format        string
	quality       string
	audioOnly     bool
	subtitles     bool
	embedSubs     bool
	subsLangs     string
	template      string
	convert       bool
	convertFormat string
	json          bool
}

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	var flags downloadFlags

	cmd := &cobra.Command{
		Use:   "download <url>",
		Short: "Download media through the backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := ctx.openSession()
			if err != nil {
				return err
			}
			defer sess.Close()

			fields := flags.fields(args[0], cmd, sess)
			req, err := request.BuildDownload(fields)
			if err != nil {
				return err
			}

			lock, err := acquireLock(sess.cfg)
			if err != nil {
				return err
			}
			defer lock.Release()

			out := cmd.OutOrStdout()
			ctrl := sess.controller()
			if !flags.json {
				ctrl.OnTransition(transitionPrinter(out, shouldColorize(out)))
			}

			runCtx := cmd.Context()
			downloaded, err := ctrl.SubmitDownload(runCtx, req)
			if err != nil {
				return err
			}
			final := downloaded
			var converted *operation.State
			if flags.convert && downloaded.Phase == operation.PhaseSucceeded {
				state, err := ctrl.SubmitConvert(runCtx, fields.AudioOnly, flags.selectedConvertFormat(req))
				if err != nil {
					return err
				}
				converted = &state
				final = state
			}

			if flags.json {
				payload := map[string]operationOutput{"download": newOperationOutput(downloaded, sess.client)}
				if converted != nil {
					payload["convert"] = newOperationOutput(*converted, sess.client)
				}
				if err := writeJSON(cmd, payload); err != nil {
					return err
				}
			} else {
				printArtifact(out, final, sess.client)
			}

			if final.Phase == operation.PhaseFailed {
				return errAlreadyReported
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&flags.format, "format", "f", "", "Container format ("+request.FormatList()+"); defaults to config")
	cmd.Flags().StringVarP(&flags.quality, "quality", "q", "", "Quality selector passed to the backend; defaults to config")
	cmd.Flags().BoolVar(&flags.audioOnly, "audio-only", false, "Extract audio only")
	cmd.Flags().BoolVar(&flags.subtitles, "subtitles", false, "Download subtitles")
	cmd.Flags().BoolVar(&flags.embedSubs, "embed-subs", false, "Embed subtitles into the output")
	cmd.Flags().StringVar(&flags.subsLangs, "subs-langs", "", "Comma separated subtitle languages; defaults to config")
	cmd.Flags().StringVar(&flags.template, "template", "", "Output filename template; defaults to config")
	cmd.Flags().BoolVar(&flags.convert, "convert", false, "Convert the downloaded file once the download succeeds")
	cmd.Flags().StringVar(&flags.convertFormat, "convert-format", "", "Output format for --convert (defaults to the download format)")
	cmd.Flags().BoolVar(&flags.json, "json", false, "Output as JSON")
	return cmd
}

// fields merges flags with config defaults. Subtitle languages fall back to
// config only when the flag was not given, so an explicit empty value sends
// an empty list.
func (f downloadFlags) fields(url string, cmd *cobra.Command, sess *session) request.DownloadFields {
	defaults := sess.cfg.Defaults
	fields := request.DownloadFields{
		URL:              url,
		Format:           f.format,
		Quality:          f.quality,
		AudioOnly:        f.audioOnly,
		Subtitles:        f.subtitles,
		EmbedSubtitles:   f.embedSubs,
		SubtitleLangs:    f.subsLangs,
		FilenameTemplate: f.template,
	}
	if strings.TrimSpace(fields.Format) == "" {
		fields.Format = defaults.Format
	}
	if strings.TrimSpace(fields.Quality) == "" {
		fields.Quality = defaults.Quality
	}
	if !cmd.Flags().Changed("subs-langs") {
		fields.SubtitleLangs = request.JoinLanguages(defaults.SubtitleLangs)
	}
	if strings.TrimSpace(fields.FilenameTemplate) == "" {
		fields.FilenameTemplate = defaults.FilenameTemplate
	}
	return fields
}

func (f downloadFlags) selectedConvertFormat(req request.DownloadRequest) string {
	if strings.TrimSpace(f.convertFormat) != "" {
		return f.convertFormat
	}
	return req.Format.String()
}
