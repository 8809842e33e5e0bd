package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"fluxmedia/internal/batch"
	"fluxmedia/internal/request"
	"fluxmedia/internal/services"
)

func newBatchCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "batch <file.yaml>",
		Short: "Run a list of downloads one after another",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := batch.Load(args[0])
			if err != nil {
				return err
			}

			sess, err := ctx.openSession()
			if err != nil {
				return err
			}
			defer sess.Close()

			lock, err := acquireLock(sess.cfg)
			if err != nil {
				return err
			}
			defer lock.Release()

			defaults := sess.cfg.Defaults
			langs := batch.Languages(request.JoinLanguages(defaults.SubtitleLangs))
			items := file.Resolved(batch.Defaults{
				Format:           defaults.Format,
				Quality:          defaults.Quality,
				SubtitleLangs:    &langs,
				FilenameTemplate: defaults.FilenameTemplate,
			})

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			runnerOpts := []batch.RunnerOption{batch.WithLogger(sess.logger)}
			if !jsonOut {
				runnerOpts = append(runnerOpts, batch.WithProgress(func(o batch.Outcome) {
					label := fmt.Sprintf("[%d/%d]", o.Index+1, len(items))
					fmt.Fprintln(out, renderStatusLine(label, outcomeStatus(o), o.Item.URL+" "+outcomeMessage(o), colorize))
				}))
			}
			summary := batch.NewRunner(sess.controller(), runnerOpts...).Run(cmd.Context(), items)

			if jsonOut {
				if err := writeJSON(cmd, batchJSON(summary, sess)); err != nil {
					return err
				}
			} else {
				fmt.Fprintln(out, renderTable(
					[]string{"#", "URL", "RESULT", "OUTPUT"},
					batchRows(summary),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
				))
				fmt.Fprintf(out, "%d succeeded, %d failed, %d cancelled\n", summary.Succeeded, summary.Failed, summary.Cancelled)
			}

			if summary.Failed > 0 || summary.Cancelled > 0 {
				return errAlreadyReported
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func outcomeStatus(o batch.Outcome) statusKind {
	switch {
	case o.Succeeded():
		return statusOK
	case o.Cancelled:
		return statusWarn
	default:
		return statusError
	}
}

func outcomeMessage(o batch.Outcome) string {
	switch {
	case o.Cancelled:
		return "cancelled"
	case o.Err != nil:
		return o.Err.Error()
	default:
		return o.Final().Message
	}
}

func batchRows(summary batch.Summary) [][]string {
	rows := make([][]string, 0, len(summary.Outcomes))
	for _, o := range summary.Outcomes {
		output := ""
		if o.Succeeded() {
			output = o.Final().ArtifactPath
		}
		rows = append(rows, []string{
			strconv.Itoa(o.Index + 1),
			o.Item.URL,
			outcomeMessage(o),
			valueOrDash(output),
		})
	}
	return rows
}

type batchItemOutput struct {
	Index     int              `json:"index"`
	URL       string           `json:"url"`
	Succeeded bool             `json:"succeeded"`
	Cancelled bool             `json:"cancelled,omitempty"`
	Error     string           `json:"error,omitempty"`
	Retryable bool             `json:"retryable,omitempty"`
	Download  *operationOutput `json:"download,omitempty"`
	Convert   *operationOutput `json:"convert,omitempty"`
}

type batchOutput struct {
	Items     []batchItemOutput `json:"items"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
	Cancelled int               `json:"cancelled"`
}

func batchJSON(summary batch.Summary, sess *session) batchOutput {
	out := batchOutput{
		Items:     make([]batchItemOutput, 0, len(summary.Outcomes)),
		Succeeded: summary.Succeeded,
		Failed:    summary.Failed,
		Cancelled: summary.Cancelled,
	}
	for _, o := range summary.Outcomes {
		item := batchItemOutput{
			Index:     o.Index + 1,
			URL:       o.Item.URL,
			Succeeded: o.Succeeded(),
			Cancelled: o.Cancelled,
		}
		if o.Err != nil {
			item.Error = o.Err.Error()
			item.Retryable = services.IsRetryable(o.Err)
		} else if !o.Cancelled && !item.Succeeded {
			item.Retryable = true
		}
		if o.Download.Kind != "" {
			download := newOperationOutput(o.Download, sess.client)
			item.Download = &download
		}
		if o.Convert != nil {
			convert := newOperationOutput(*o.Convert, sess.client)
			item.Convert = &convert
		}
		out.Items = append(out.Items, item)
	}
	return out
}
