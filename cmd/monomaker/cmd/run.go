// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/monomaker/monomaker/internal/config"
	"github.com/monomaker/monomaker/internal/forgeauth"
	"github.com/monomaker/monomaker/internal/logx"
	"github.com/monomaker/monomaker/internal/orchestrator"
	"github.com/monomaker/monomaker/internal/report"
	"github.com/monomaker/monomaker/internal/vcsdriver"
	"github.com/monomaker/monomaker/pkg/cliutil"
)

var (
	runWorkspace     string
	runWhitelistPath string
	runReportPath    string
	runWorkers       int
	runKeepOnFailure bool
	runMergeTopology bool
	runResume        bool
)

func init() {
	rootCmd.Flags().StringVar(&runWorkspace, "workspace", ".monomaker", "workspace directory for clones, the monorepo, and the report")
	rootCmd.Flags().StringVar(&runWhitelistPath, "branches-whitelist", "", "path to a JSON array of branch names to restrict synthesis to")
	rootCmd.Flags().StringVar(&runReportPath, "report", "", "path to write the migration report (defaults to <workspace>/report.json)")
	rootCmd.Flags().IntVar(&runWorkers, "workers", 0, "discovery worker pool size (0 = use config default, else 4)")
	rootCmd.Flags().BoolVar(&runKeepOnFailure, "keep-on-failure", false, "keep the workspace's source clones after a fatal error")
	rootCmd.Flags().BoolVar(&runMergeTopology, "merge-topology", false, "reproduce meta-repo merge commits instead of collapsing them (Mode B)")
	rootCmd.Flags().BoolVar(&runResume, "resume", false, "resume a previous run, skipping branches already marked done in <workspace>/state.json")
}

func runRoot(c *cobra.Command, args []string) error {
	if len(args) != 1 {
		exitCode = orchestrator.ExitUsageError
		return c.Help()
	}
	metaRepoPath := args[0]

	cfg, err := config.LoadDefault()
	if err != nil {
		exitCode = orchestrator.ExitUsageError
		return err
	}
	if runWorkers <= 0 {
		runWorkers = cfg.Workspace.Workers
	}
	if !runMergeTopology {
		runMergeTopology = cfg.Workspace.MergeTopology
	}

	level := logx.LevelInfo
	switch {
	case quiet:
		level = logx.LevelSilent
	case verbose:
		level = logx.LevelDebug
	}
	logger := logx.NewWriterLogger(os.Stderr, level)

	driver := vcsdriver.NewDriver(vcsdriver.WithLogger(logger))
	auth := forgeauth.New(cfg)

	o := orchestrator.New(driver, runWorkspace, nil, auth, runWorkers)
	o.Forge = auth
	o.Log = logger
	o.MergeTopology = runMergeTopology

	ctx, cancel := context.WithCancel(c.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Warn("cancellation requested, waiting for the in-flight operation to finish")
			cancel()
		case <-ctx.Done():
		}
	}()
	defer signal.Stop(sigCh)

	runCfg := orchestrator.RunConfig{
		MetaRepoPath:  metaRepoPath,
		WhitelistPath: runWhitelistPath,
		ReportPath:    runReportPath,
		KeepOnFailure: runKeepOnFailure,
		Resume:        runResume,
	}

	code, runErr := o.Run(ctx, runCfg)
	exitCode = code

	if !quiet {
		reportPath := runReportPath
		if reportPath == "" {
			reportPath = runWorkspace + "/report.json"
		}
		if doc, readErr := report.ReadFile(reportPath); readErr == nil {
			cliutil.WriteRunSummary(os.Stderr, doc)
		}
	}

	if runErr != nil {
		return fmt.Errorf("monomaker: %w", runErr)
	}
	return nil
}
