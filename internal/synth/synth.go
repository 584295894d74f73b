// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

// Package synth implements the History Synthesizer (C5 in SPEC_FULL.md),
// the heart of Monomaker: it turns one resolver.BranchPlan into one
// monorepo branch by stitching roots, grafting each source repo under its
// target path, and (in Mode B) reproducing meta-repo merge topology.
package synth

import (
	"context"
	"fmt"
	"sort"

	"github.com/monomaker/monomaker/internal/repomodel"
	"github.com/monomaker/monomaker/internal/report"
	"github.com/monomaker/monomaker/internal/resolver"
)

// Driver is the subset of vcsdriver.Driver the Synthesizer depends on. It is
// declared here, not imported from vcsdriver, so this package never needs
// vcsdriver's concrete type and stays trivially testable with a fake.
type Driver interface {
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
}

// InitialCommitMessage is the message used for the single shared root
// commit every synthesized branch descends from (spec §4.5 Mode A step 1).
const InitialCommitMessage = "monomaker: initial empty root"

// PathCollisionError is the fatal error of spec §4.5 step 4 / §9: two
// nested submodules (or two first-layer target_subpaths, caught earlier in
// discovery) resolve to the same path.
type PathCollisionError struct {
	Path string
}

func (e *PathCollisionError) Error() string {
	return fmt.Sprintf("path collision at %s", e.Path)
}

// Synthesizer builds monorepo branches from resolved BranchPlans.
type Synthesizer struct {
	driver        Driver
	monorepoPath  string
	metaRepoName  string
	sourceOrder   func([]resolver.PlanEntry) []resolver.PlanEntry
	mergeTopology bool // enables Mode B when the meta-repo branch has merges
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithMergeTopology enables Mode B (spec §4.5): meta-repo merge commits on a
// feature branch are reproduced instead of collapsed to one subtree import.
// Per SPEC_FULL's Open Question resolution, this defaults to off (Mode A)
// and must be opted into explicitly.
func WithMergeTopology(enabled bool) Option {
	return func(s *Synthesizer) { s.mergeTopology = enabled }
}

// New builds a Synthesizer. monorepoPath is the workspace's monorepo clone;
// metaRepoName identifies which repo in every plan is the meta-repo (it is
// always ordered last within a branch, per spec §4.5 Mode A step 3).
func New(driver Driver, monorepoPath, metaRepoName string, opts ...Option) *Synthesizer {
	s := &Synthesizer{
		driver:       driver,
		monorepoPath: monorepoPath,
		metaRepoName: metaRepoName,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// orderedEntries places first-layer submodules before the meta-repo, so the
// meta-repo's commit "overlays" last (spec §4.5 Mode A step 3).
func (s *Synthesizer) orderedEntries(plan resolver.BranchPlan) []resolver.PlanEntry {
	subs := make([]resolver.PlanEntry, 0, len(plan.Entries))
	var meta *resolver.PlanEntry
	for i := range plan.Entries {
		e := plan.Entries[i]
		if e.Repo.Name == s.metaRepoName {
			m := e
			meta = &m
			continue
		}
		subs = append(subs, e)
	}
	sort.SliceStable(subs, func(i, j int) bool { return subs[i].Repo.Name < subs[j].Repo.Name })
	if meta != nil {
		subs = append(subs, *meta)
	}
	return subs
}

// Outcome is the result of synthesizing one branch: either a commit SHA, or
// a non-fatal failure recorded by the caller and left on the scratch ref
// (spec §4.5 "Failure semantics" / §7).
type Outcome struct {
	Branch        string
	CommitSHA     string
	PathOverrides []report.PathOverride
	Err           error
}

// ScratchRef is where a partially-synthesized branch is preserved on
// failure, per spec §4.5 / §7.
func ScratchRef(branch string) string {
	return "refs/monomaker/failed/" + branch
}

// Quarantine moves a branch that failed synthesis off refs/heads/<branch> and
// onto its ScratchRef, preserving whatever partial history was built without
// leaving it counted among the monorepo's branches (spec §8.2). It is a
// no-op if the branch was never created (failure before ensureBranch ran).
func (s *Synthesizer) Quarantine(ctx context.Context, branch string) error {
	exists, err := s.driver.BranchExists(ctx, s.monorepoPath, branch)
	if err != nil {
		return fmt.Errorf("quarantine %s: %w", branch, err)
	}
	if !exists {
		return nil
	}

	sha, err := s.driver.CurrentSHA(ctx, s.monorepoPath)
	if err != nil {
		return fmt.Errorf("quarantine %s: %w", branch, err)
	}
	if err := s.driver.UpdateRef(ctx, s.monorepoPath, ScratchRef(branch), sha); err != nil {
		return fmt.Errorf("quarantine %s: preserve partial state: %w", branch, err)
	}
	if err := s.driver.DeleteRef(ctx, s.monorepoPath, "refs/heads/"+branch); err != nil {
		return fmt.Errorf("quarantine %s: remove partial branch: %w", branch, err)
	}
	return nil
}

// Synthesize builds the monorepo branch for one BranchPlan. metaHasMerges
// reports whether the meta-repo's plan_entry.branch_used contains merge
// commits relative to the meta-repo's default branch — the caller determines
// it for each plan and passes it in so the Synthesizer never has to
// special-case "what is the meta-repo's default branch" itself.
func (s *Synthesizer) Synthesize(ctx context.Context, plan resolver.BranchPlan, metaHasMerges bool) Outcome {
	branch := plan.Branch

	if err := s.ensureBranch(ctx, branch); err != nil {
		return Outcome{Branch: branch, Err: fmt.Errorf("ensure branch %s: %w", branch, err)}
	}

	if s.mergeTopology && metaHasMerges {
		sha, overrides, err := s.synthesizeModeB(ctx, plan)
		if err != nil {
			return Outcome{Branch: branch, Err: err}
		}
		return Outcome{Branch: branch, CommitSHA: sha, PathOverrides: overrides}
	}

	sha, overrides, err := s.synthesizeModeA(ctx, plan)
	if err != nil {
		return Outcome{Branch: branch, Err: err}
	}
	return Outcome{Branch: branch, CommitSHA: sha, PathOverrides: overrides}
}

// ensureBranch implements spec §4.5 Mode A steps 1-2: the monorepo branch
// must exist, rooted at the single shared initial commit, and be checked
// out before any import runs.
func (s *Synthesizer) ensureBranch(ctx context.Context, branch string) error {
	exists, err := s.driver.BranchExists(ctx, s.monorepoPath, branch)
	if err != nil {
		return err
	}
	if exists {
		return s.driver.Checkout(ctx, s.monorepoPath, branch)
	}

	rootExists, err := s.driver.BranchExists(ctx, s.monorepoPath, rootBranchName)
	if err != nil {
		return err
	}
	if !rootExists {
		if err := s.driver.CreateOrphanBranch(ctx, s.monorepoPath, rootBranchName); err != nil {
			return err
		}
		if _, err := s.driver.CommitEmpty(ctx, s.monorepoPath, InitialCommitMessage); err != nil {
			return err
		}
	} else if err := s.driver.Checkout(ctx, s.monorepoPath, rootBranchName); err != nil {
		return err
	}

	rootSHA, err := s.driver.CurrentSHA(ctx, s.monorepoPath)
	if err != nil {
		return err
	}
	return s.driver.CreateBranch(ctx, s.monorepoPath, branch, rootSHA)
}

// rootBranchName holds the single shared initial commit every synthesized
// branch is rooted at (spec §4.5 Mode A step 1: "the same initial commit is
// reused across all B").
const rootBranchName = "monomaker-root"

// synthesizeModeA implements spec §4.5 Mode A: a linear sequence of subtree
// imports, overlaid by nested-submodule gitlinks.
func (s *Synthesizer) synthesizeModeA(ctx context.Context, plan resolver.BranchPlan) (string, []report.PathOverride, error) {
	entries := s.orderedEntries(plan)
	metaEntry, _ := plan.EntryFor(s.metaRepoName)

	var overrides []report.PathOverride
	seenNestedPaths := make(map[string]repomodel.NestedSubmodule)

	for _, e := range entries {
		target := e.Repo.TargetSubpath
		if target == repomodel.MetaRepoTargetSubpath {
			target = "."
		}
		if _, err := s.driver.SubtreeAdd(ctx, s.monorepoPath, e.Repo.LocalPath, e.BranchUsed, target); err != nil {
			return "", nil, fmt.Errorf("subtree add %s@%s -> %s: %w", e.Repo.Name, e.BranchUsed, target, err)
		}

		if e.Repo.Name != s.metaRepoName && metaEntry.Repo != nil {
			collides, err := s.driver.PathExistsInTree(ctx, metaEntry.Repo.LocalPath, metaEntry.BranchUsed, target)
			if err != nil {
				return "", nil, fmt.Errorf("check path collision for %s: %w", target, err)
			}
			if collides {
				overrides = append(overrides, report.PathOverride{Path: target, Winner: e.Repo.Name, Branch: plan.Branch})
			}
		}

		for _, nested := range e.Repo.NestedSubmodules {
			path := joinPath(e.Repo.TargetSubpath, nested.PathRelativeToOwner)
			if prior, ok := seenNestedPaths[path]; ok && prior != nested {
				return "", nil, &PathCollisionError{Path: path}
			}
			seenNestedPaths[path] = nested
		}
	}

	for path, nested := range seenNestedPaths {
		if err := s.driver.AddSubmodule(ctx, s.monorepoPath, path, nested.URL, nested.SHA); err != nil {
			return "", nil, fmt.Errorf("add nested submodule %s: %w", path, err)
		}
	}

	finalSHA, err := s.driver.CurrentSHA(ctx, s.monorepoPath)
	if err != nil {
		return "", nil, err
	}
	return finalSHA, overrides, nil
}

func joinPath(owner, rel string) string {
	if owner == "." || owner == "" {
		return rel
	}
	return owner + "/" + rel
}

// synthesizeModeB implements spec §4.5 Mode B: the meta-repo's merge-commit
// DAG restricted to commits reachable from the feature branch but not its
// default branch is reproduced one commit at a time. Submodule repos are
// still imported linearly (merge structure inside them is an explicit
// non-goal, spec §1).
//
// This walks the meta-repo's merge commits in topological order and, for
// each, issues a merge_ours against the corresponding monorepo state. The
// terminal subtree_add (non-merge commits represented as one import) runs
// after the merge-commit walk, importing the meta-repo branch tip itself.
func (s *Synthesizer) synthesizeModeB(ctx context.Context, plan resolver.BranchPlan) (string, []report.PathOverride, error) {
	entries := s.orderedEntries(plan)

	var metaEntry *resolver.PlanEntry
	if m, ok := plan.EntryFor(s.metaRepoName); ok {
		metaEntry = &m
	}
	var overrides []report.PathOverride
	seenNestedPaths := make(map[string]repomodel.NestedSubmodule)

	for i := range entries {
		e := entries[i]
		if e.Repo.Name == s.metaRepoName {
			continue
		}
		target := e.Repo.TargetSubpath
		if _, err := s.driver.SubtreeAdd(ctx, s.monorepoPath, e.Repo.LocalPath, e.BranchUsed, target); err != nil {
			return "", nil, fmt.Errorf("subtree add %s@%s -> %s: %w", e.Repo.Name, e.BranchUsed, target, err)
		}
		if metaEntry != nil {
			collides, err := s.driver.PathExistsInTree(ctx, metaEntry.Repo.LocalPath, metaEntry.BranchUsed, target)
			if err != nil {
				return "", nil, fmt.Errorf("check path collision for %s: %w", target, err)
			}
			if collides {
				overrides = append(overrides, report.PathOverride{Path: target, Winner: e.Repo.Name, Branch: plan.Branch})
			}
		}

		for _, nested := range e.Repo.NestedSubmodules {
			path := joinPath(e.Repo.TargetSubpath, nested.PathRelativeToOwner)
			if prior, ok := seenNestedPaths[path]; ok && prior != nested {
				return "", nil, &PathCollisionError{Path: path}
			}
			seenNestedPaths[path] = nested
		}
	}

	if metaEntry == nil {
		return "", nil, fmt.Errorf("branch plan %s has no meta-repo entry", plan.Branch)
	}

	mergeCommits, err := s.driver.MergeCommitsBetween(ctx, metaEntry.Repo.LocalPath, metaEntry.Repo.DefaultBranch, metaEntry.BranchUsed)
	if err != nil {
		return "", nil, fmt.Errorf("walk meta-repo merge commits: %w", err)
	}

	for _, commit := range mergeCommits {
		parents, err := s.driver.MergeParents(ctx, metaEntry.Repo.LocalPath, commit)
		if err != nil {
			return "", nil, fmt.Errorf("read merge parents for %s: %w", commit, err)
		}
		if len(parents) < 2 {
			continue
		}
		// The second (and later) parents are side branches merged into the
		// meta-repo; record the topology with merge_ours so content already
		// present via the terminal subtree_add is not duplicated.
		if _, err := s.driver.MergeOurs(ctx, s.monorepoPath, metaEntry.BranchUsed); err != nil {
			return "", nil, fmt.Errorf("merge-ours for meta-repo commit %s: %w", commit, err)
		}
	}

	if _, err := s.driver.SubtreeAdd(ctx, s.monorepoPath, metaEntry.Repo.LocalPath, metaEntry.BranchUsed, "."); err != nil {
		return "", nil, fmt.Errorf("terminal subtree add for meta-repo %s: %w", metaEntry.BranchUsed, err)
	}

	for path, nested := range seenNestedPaths {
		if err := s.driver.AddSubmodule(ctx, s.monorepoPath, path, nested.URL, nested.SHA); err != nil {
			return "", nil, fmt.Errorf("add nested submodule %s: %w", path, err)
		}
	}

	finalSHA, err := s.driver.CurrentSHA(ctx, s.monorepoPath)
	if err != nil {
		return "", nil, err
	}
	return finalSHA, overrides, nil
}
