// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/monomaker/monomaker/internal/config"
	"github.com/monomaker/monomaker/internal/forgeauth"
	"github.com/monomaker/monomaker/internal/logx"
	"github.com/monomaker/monomaker/internal/orchestrator"
	"github.com/monomaker/monomaker/internal/report"
	"github.com/monomaker/monomaker/internal/vcsdriver"
	"github.com/monomaker/monomaker/internal/wizard"
)

var wizardOutputPath string

var wizardCmd = &cobra.Command{
	Use:   "wizard <metarepo_path>",
	Short: "Interactively build a branch whitelist",
	Long: `wizard discovers a meta-repo's repositories and branches, then lets you
pick which branches to carry into a "monomaker <metarepo_path>" run instead of
hand-writing a whitelist JSON file.`,
	Args: cobra.ExactArgs(1),
	RunE: runWizard,
}

func init() {
	rootCmd.AddCommand(wizardCmd)
	wizardCmd.Flags().StringVar(&wizardOutputPath, "output", "whitelist.json", "path to write the selected whitelist")
}

func runWizard(c *cobra.Command, args []string) error {
	metaRepoPath := args[0]

	cfg, err := config.LoadDefault()
	if err != nil {
		exitCode = orchestrator.ExitUsageError
		return err
	}

	level := logx.LevelInfo
	if quiet {
		level = logx.LevelSilent
	}
	logger := logx.NewWriterLogger(c.ErrOrStderr(), level)

	driver := vcsdriver.NewDriver(vcsdriver.WithLogger(logger))
	auth := forgeauth.New(cfg)

	workers := cfg.Workspace.Workers
	o := orchestrator.New(driver, cfg.Workspace.Dir, report.New(time.Now()), auth, workers)
	o.Forge = auth
	o.Log = logger

	w := wizard.New(o)
	if err := w.Run(c.Context(), metaRepoPath, wizardOutputPath); err != nil {
		exitCode = orchestrator.ExitFatal
		return fmt.Errorf("wizard: %w", err)
	}
	return nil
}
