package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"fluxmedia/internal/backend"
	"fluxmedia/internal/operation"
)

// operationOutput is the machine readable form of a settled operation.
type operationOutput struct {
	Kind     string `json:"kind"`
	Phase    string `json:"phase"`
	Message  string `json:"message"`
	Artifact string `json:"artifact,omitempty"`
	FileURL  string `json:"file_url,omitempty"`
}

func newOperationOutput(state operation.State, client *backend.Client) operationOutput {
	result := state.Result()
	out := operationOutput{
		Kind:     string(state.Kind),
		Phase:    state.Phase.String(),
		Message:  result.Message,
		Artifact: result.ArtifactPath,
	}
	if state.Phase == operation.PhaseSucceeded && state.HasArtifact() {
		out.FileURL = client.FileURL(state.ArtifactPath)
	}
	return out
}

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// transitionPrinter returns a controller hook that prints every state the
// controller enters, so the user sees "Starting..." before the result.
func transitionPrinter(w io.Writer, colorize bool) operation.Hook {
	return func(_ context.Context, tr operation.Transition) {
		fmt.Fprintln(w, renderStatusLine(string(tr.To.Kind), phaseStatus(tr.To.Phase), tr.To.Message, colorize))
	}
}

// printArtifact prints where a successful operation left its output.
func printArtifact(w io.Writer, state operation.State, client *backend.Client) {
	if state.Phase != operation.PhaseSucceeded || !state.HasArtifact() {
		return
	}
	fmt.Fprintf(w, "Artifact: %s\n", state.ArtifactPath)
	fmt.Fprintf(w, "File URL: %s\n", client.FileURL(state.ArtifactPath))
}
