package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"fluxmedia/internal/backend"
	"fluxmedia/internal/request"
)

func newURLCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "url <artifact>",
		Short: "Print the link that serves a produced file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			artifact := strings.TrimSpace(args[0])
			if artifact == "" {
				return &request.ValidationError{Field: "artifact", Reason: "a file path is required"}
			}
			client := backend.New(ctx.configValue().Backend.URL)
			fmt.Fprintln(cmd.OutOrStdout(), client.FileURL(artifact))
			return nil
		},
	}
}
