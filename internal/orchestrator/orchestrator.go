// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

// Package orchestrator implements the top-level Orchestrator (C6 in
// SPEC_FULL.md): it drives discovery, branch resolution, and synthesis for
// one meta-repo migration run and owns the Migration Report and exit-code
// semantics of spec §6.
package orchestrator

import (
	"context"

	"github.com/monomaker/monomaker/internal/forgeauth"
	"github.com/monomaker/monomaker/internal/logx"
	"github.com/monomaker/monomaker/internal/report"
	"github.com/monomaker/monomaker/internal/runstate"
	"github.com/monomaker/monomaker/internal/vcsdriver"
)

// defaultWorkers is the bounded-concurrency limit for the discovery phase
// when the caller does not set Workers (spec §5: "W, default 4").
const defaultWorkers = 4

// Driver is everything the Orchestrator asks a VCS adapter to do, across
// discovery, branch resolution support, and synthesis. *vcsdriver.Driver
// satisfies it directly; tests substitute a fake.
type Driver interface {
	Clone(ctx context.Context, url, dest string, env []string) error
	FetchAllBranches(ctx context.Context, repo string) error
	ListBranches(ctx context.Context, repo string) ([]string, error)
	DefaultBranch(ctx context.Context, repo string) (string, error)
	ListSubmodules(ctx context.Context, repo, ref string) ([]vcsdriver.Submodule, error)

	CreateOrphanBranch(ctx context.Context, monorepo, name string) error
	BranchExists(ctx context.Context, monorepo, name string) (bool, error)
	Checkout(ctx context.Context, monorepo, ref string) error
	CommitEmpty(ctx context.Context, monorepo, message string) (string, error)
	SubtreeAdd(ctx context.Context, monorepo, sourceRepoPath, ref, targetSubpath string) (string, error)
	MergeOurs(ctx context.Context, monorepo, otherBranch string) (string, error)
	AddSubmodule(ctx context.Context, monorepo, path, url, sha string) error
	CurrentSHA(ctx context.Context, monorepo string) (string, error)
	MergeParents(ctx context.Context, repo, commit string) ([]string, error)
	MergeCommitsBetween(ctx context.Context, repo, base, head string) ([]string, error)
	CreateBranch(ctx context.Context, repo, name, startPoint string) error
	PathExistsInTree(ctx context.Context, repo, ref, path string) (bool, error)
	UpdateRef(ctx context.Context, repo, ref, sha string) error
	DeleteRef(ctx context.Context, repo, ref string) error

	InitRepo(ctx context.Context, path string) error
	Tag(ctx context.Context, monorepo, name string) error
}

// Orchestrator wires the VCS Driver, Migration Report, and workspace
// together for one run of Discover -> Resolve -> Synthesize (spec §4.6).
type Orchestrator struct {
	driver Driver

	Report       *report.Report
	WorkspaceDir string
	Auth         AuthProvider

	// Forge, if set, is consulted before git-native discovery as a
	// latency optimization (SPEC_FULL SUPPLEMENTED FEATURES #1). Its
	// result is never trusted on its own — discoverOne always reconciles
	// against fetch_all_branches/list_branches before a branch set is
	// used for resolution.
	Forge ForgeDiscovery

	// Log receives discovery/synthesis diagnostics. Defaults to a no-op.
	Log logx.Logger

	// Workers bounds discovery concurrency (spec §5). Zero means
	// defaultWorkers.
	Workers int

	// MergeTopology opts into Mode B synthesis (spec §4.5's Open Question
	// resolution: off by default).
	MergeTopology bool

	// State, if non-nil, enables resumable runs (SPEC_FULL SUPPLEMENTED
	// FEATURES #4): SynthesizeAll consults it before synthesizing each
	// branch and skips any already marked runstate.StatusDone.
	State runstate.Store
}

// ForgeDiscovery is the narrow collaborator backing SUPPLEMENTED FEATURES
// #1 (forge-assisted branch discovery). *forgeauth.Provider implements it.
type ForgeDiscovery interface {
	Discover(ctx context.Context, remoteURL string) (info *forgeauth.BranchInfo, handled bool, err error)
}

// New builds an Orchestrator. rep may be nil, in which case Run creates one
// via report.New at its start; callers that invoke Discover or other phases
// directly must pass a Report.
func New(driver Driver, workspaceDir string, rep *report.Report, auth AuthProvider, workers int) *Orchestrator {
	return &Orchestrator{
		driver:       driver,
		Report:       rep,
		WorkspaceDir: workspaceDir,
		Auth:         auth,
		Workers:      workers,
		Log:          logx.NewNoopLogger(),
	}
}

func (o *Orchestrator) logger() logx.Logger {
	if o.Log == nil {
		return logx.NewNoopLogger()
	}
	return o.Log
}

func (o *Orchestrator) workerCount() int {
	if o.Workers <= 0 {
		return defaultWorkers
	}
	return o.Workers
}
