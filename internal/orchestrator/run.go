// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/monomaker/monomaker/internal/report"
	"github.com/monomaker/monomaker/internal/runstate"
)

// Exit codes per spec §6.
const (
	ExitSuccess        = 0
	ExitUsageError     = 2
	ExitPartialSuccess = 3
	ExitFatal          = 4
	ExitCancelled      = 130
)

// RunConfig is the parsed form of the CLI flags of spec §6.
type RunConfig struct {
	MetaRepoPath  string
	WhitelistPath string // empty means "no whitelist"
	ReportPath    string // defaults to <workspace>/report.json
	KeepOnFailure bool
	Resume        bool             // resume a prior run, skipping branches already marked done (SPEC_FULL SUPPLEMENTED FEATURES #4)
	NowFunc       func() time.Time // injected for SOURCE_DATE_EPOCH reproducibility (spec §8 property 4)
}

// Run executes one end-to-end migration: validate, discover, resolve,
// synthesize every effective branch, and write the Migration Report. The
// returned int is the process exit code per spec §6.
func (o *Orchestrator) Run(ctx context.Context, cfg RunConfig) (int, error) {
	now := time.Now
	if cfg.NowFunc != nil {
		now = cfg.NowFunc
	}
	if o.Report == nil {
		o.Report = report.New(now())
	}

	if info, err := os.Stat(cfg.MetaRepoPath); err != nil || !info.IsDir() {
		return ExitUsageError, &BadPathError{Path: cfg.MetaRepoPath}
	}

	whitelist, err := loadWhitelist(cfg.WhitelistPath)
	if err != nil {
		return ExitUsageError, err
	}

	if err := os.MkdirAll(o.WorkspaceDir, 0o755); err != nil {
		return ExitFatal, &WorkspaceUnwritableError{Path: o.WorkspaceDir, Err: err}
	}
	monorepoPath := filepath.Join(o.WorkspaceDir, "monorepo")

	if cfg.Resume {
		o.State = runstate.NewFileStore(filepath.Join(o.WorkspaceDir, "state.json"))
	}

	reportPath := cfg.ReportPath
	if reportPath == "" {
		reportPath = filepath.Join(o.WorkspaceDir, "report.json")
	}

	repos, err := o.Discover(ctx, cfg.MetaRepoPath)
	if err != nil {
		return o.finishFatal(ctx, err, reportPath, now(), cfg.KeepOnFailure)
	}

	result := o.Resolve(repos, whitelist)

	if err := o.driver.InitRepo(ctx, monorepoPath); err != nil {
		return o.finishFatal(ctx, &WorkspaceUnwritableError{Path: monorepoPath, Err: err}, reportPath, now(), cfg.KeepOnFailure)
	}

	anyFailed, err := o.SynthesizeAll(ctx, monorepoPath, result.Plans)
	if err != nil {
		if _, cancelled := err.(Cancelled); cancelled {
			_ = o.Report.WriteFile(reportPath, now())
			return ExitCancelled, err
		}
		return o.finishFatal(ctx, err, reportPath, now(), cfg.KeepOnFailure)
	}

	if err := o.Report.WriteFile(reportPath, now()); err != nil {
		return ExitFatal, err
	}

	if anyFailed {
		return ExitPartialSuccess, nil
	}
	return ExitSuccess, nil
}

// finishFatal writes whatever report state exists, removes the workspace's
// sources/ clones (unless the caller asked to keep them for inspection,
// spec §4.5 "Failure semantics" / the --keep-on-failure flag; the rest of
// the workspace is left in place), and returns the fatal exit code.
func (o *Orchestrator) finishFatal(_ context.Context, cause error, reportPath string, finishedAt time.Time, keepOnFailure bool) (int, error) {
	_ = o.Report.WriteFile(reportPath, finishedAt)
	if !keepOnFailure {
		_ = os.RemoveAll(filepath.Join(o.WorkspaceDir, "sources"))
	}
	return ExitFatal, cause
}

// loadWhitelist reads and validates the whitelist JSON file of spec §6: "A
// JSON array of strings... Any non-string element is a usage error."
func loadWhitelist(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &BadWhitelistError{Detail: err.Error()}
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &BadWhitelistError{Detail: err.Error()}
	}

	out := make([]string, 0, len(raw))
	for _, r := range raw {
		var s string
		if err := json.Unmarshal(r, &s); err != nil {
			return nil, &BadWhitelistError{Detail: fmt.Sprintf("non-string element: %s", string(r))}
		}
		out = append(out, s)
	}
	return out, nil
}
