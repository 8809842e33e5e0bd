package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"fluxmedia/internal/request"
)

func newFetchCommand(ctx *commandContext) *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "fetch <artifact>",
		Short: "Download a produced file from the backend",
		Args:  cobra.ExactArgs(1),
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

			target := strings.TrimSpace(outputPath)
			if target == "" {
				target = localName(artifact)
			}

			body, size, err := sess.client.Fetch(cmd.Context(), artifact)
			if err != nil {
				return err
			}
			defer body.Close()

			written, err := saveStream(body, size, target, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%d bytes)\n", target, written)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Destination file (defaults to the artifact's base name)")
	return cmd
}

var unsafeNameReplacer = strings.NewReplacer(
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// localName derives a file name in the working directory from a backend
// path. The backend may run on another OS, so both separators count.
func localName(artifact string) string {
	name := artifact
	if idx := strings.LastIndexAny(name, `/\`); idx >= 0 {
		name = name[idx+1:]
	}
	name = strings.TrimSpace(unsafeNameReplacer.Replace(name))
	if name == "" || name == "." || name == ".." {
		return "download"
	}
	return name
}

// saveStream copies body into target through a temp file in the same
// directory, so an interrupted fetch never leaves a truncated file behind.
func saveStream(body io.Reader, size int64, target string, progress io.Writer) (int64, error) {
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create output directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".flux-fetch-*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	bar := progressbar.NewOptions64(size,
		progressbar.OptionSetWriter(progress),
		progressbar.OptionSetDescription("fetch"),
		progressbar.OptionShowBytes(true),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetVisibility(isTerminal(progress)),
	)
	written, err := io.Copy(io.MultiWriter(tmp, bar), body)
	_ = bar.Finish()
	if err != nil {
		tmp.Close()
		return written, fmt.Errorf("write %s: %w", target, err)
	}
	if err := tmp.Close(); err != nil {
		return written, fmt.Errorf("close %s: %w", target, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return written, fmt.Errorf("move into place: %w", err)
	}
	return written, nil
}
