package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"fluxmedia/internal/backend"
	"fluxmedia/internal/preflight"
)

type checkOutput struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

type statusOutput struct {
	ConfigPath   string        `json:"config_path"`
	ConfigExists bool          `json:"config_exists"`
	BackendURL   string        `json:"backend_url"`
	Checks       []checkOutput `json:"checks"`
	Healthy      bool          `json:"healthy"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check backend reachability and local state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			client := backend.NewFromConfig(cfg, logger)
			results := preflight.RunAll(cmd.Context(), cfg, client)
			healthy := preflight.AllPassed(results)

			if jsonOut {
				payload := statusOutput{
					ConfigPath:   ctx.configPath,
					ConfigExists: ctx.configExists,
					BackendURL:   cfg.Backend.URL,
					Checks:       make([]checkOutput, 0, len(results)),
					Healthy:      healthy,
				}
				for _, r := range results {
					payload.Checks = append(payload.Checks, checkOutput{Name: r.Name, Passed: r.Passed, Detail: r.Detail})
				}
				if err := writeJSON(cmd, payload); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				for _, line := range renderSectionHeader("Configuration", colorize) {
					fmt.Fprintln(out, line)
				}
				fmt.Fprintln(out, renderStatusLine("Config file", statusInfo, ctx.configPath, colorize))
				fmt.Fprintln(out, renderStatusLine("Config exists", statusInfo, yesNo(ctx.configExists), colorize))
				fmt.Fprintln(out, renderStatusLine("History snapshot", statusInfo, yesNo(cfg.History.SnapshotEnabled), colorize))
				fmt.Fprintln(out)
				for _, line := range renderSectionHeader("Checks", colorize) {
					fmt.Fprintln(out, line)
				}
				for _, r := range results {
					kind := statusOK
					if !r.Passed {
						kind = statusError
					}
					fmt.Fprintln(out, renderStatusLine(r.Name, kind, r.Detail, colorize))
				}
			}

			if !healthy {
				return errAlreadyReported
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}
