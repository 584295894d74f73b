// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

package orchestrator

import (
	"context"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/monomaker/monomaker/internal/repomodel"
	"github.com/monomaker/monomaker/internal/report"
	"github.com/monomaker/monomaker/internal/vcsdriver"
)

// metaRepoName is the fixed Repository.Name the meta-repo is registered
// under, since its on-disk name is whatever directory the user passed in.
const metaRepoName = "meta"

// Discover clones the meta-repo and every first-layer submodule into
// workspace/sources/<name>, ensures every remote branch exists locally, and
// builds the Repository models the resolver and synthesizer operate on.
// Discovery across first-layer submodules is the only parallelizable phase
// (spec §5), bounded by o.Workers.
func (o *Orchestrator) Discover(ctx context.Context, metaRepoPath string) ([]*repomodel.Repository, error) {
	sourcesDir := filepath.Join(o.WorkspaceDir, "sources")

	metaClonePath := filepath.Join(sourcesDir, metaRepoName)
	if err := o.driver.Clone(ctx, metaRepoPath, metaClonePath, nil); err != nil {
		return nil, &CloneFailedError{Repo: metaRepoName, Err: err}
	}

	metaRepo, err := o.discoverOne(ctx, metaRepoName, metaClonePath, metaRepoPath, repomodel.MetaRepoTargetSubpath)
	if err != nil {
		return nil, err
	}

	subs, err := o.driver.ListSubmodules(ctx, metaClonePath, metaRepo.DefaultBranch)
	if err != nil {
		return nil, &BranchEnumerationFailedError{Repo: metaRepoName, Err: err}
	}

	if err := checkSubpathCollisions(subs); err != nil {
		return nil, err
	}

	repos := make([]*repomodel.Repository, len(subs)+1)
	repos[0] = metaRepo

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workerCount())

	results := make([]*repomodel.Repository, len(subs))
	errs := make([]error, len(subs))

	for i, sub := range subs {
		i, sub := i, sub
		g.Go(func() error {
			if gctx.Err() != nil {
				errs[i] = Cancelled{}
				return nil
			}
			name := submoduleName(sub.Path)
			dest := filepath.Join(sourcesDir, name)
			if err := o.driver.Clone(gctx, sub.URL, dest, o.cloneEnv(sub.URL)); err != nil {
				errs[i] = &CloneFailedError{Repo: name, Err: err}
				return nil
			}
			repo, err := o.discoverOne(gctx, name, dest, sub.URL, sub.Path)
			if err != nil {
				errs[i] = err
				return nil
			}
			results[i] = repo
			return nil
		})
	}
	_ = g.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, err
		}
		repos[i+1] = results[i]
	}

	if err := checkTargetSubpathCollisions(repos); err != nil {
		return nil, err
	}

	for _, r := range repos {
		o.emitDiscovered(r)
	}

	return repos, nil
}

// discoverOne performs the single-repo sequence common to the meta-repo and
// every first-layer submodule: fetch every branch, enumerate branches,
// resolve the default branch, and read nested submodules at that default.
func (o *Orchestrator) discoverOne(ctx context.Context, name, path, remoteURL, targetSubpath string) (*repomodel.Repository, error) {
	o.forgeHint(ctx, name, remoteURL)

	if err := o.driver.FetchAllBranches(ctx, path); err != nil {
		return nil, &BranchEnumerationFailedError{Repo: name, Err: err}
	}

	defaultBranch, err := o.driver.DefaultBranch(ctx, path)
	if err != nil || defaultBranch == "" {
		return nil, &NoDefaultBranchError{Repo: name}
	}

	branches, err := o.driver.ListBranches(ctx, path)
	if err != nil {
		return nil, &BranchEnumerationFailedError{Repo: name, Err: err}
	}

	rawNested, err := o.driver.ListSubmodules(ctx, path, defaultBranch)
	if err != nil {
		return nil, &BranchEnumerationFailedError{Repo: name, Err: err}
	}
	nested := make([]repomodel.NestedSubmodule, 0, len(rawNested))
	for _, n := range rawNested {
		nested = append(nested, repomodel.NestedSubmodule{
			PathRelativeToOwner: n.Path,
			URL:                 n.URL,
			SHA:                 n.SHA,
		})
	}

	return repomodel.New(name, path, defaultBranch, branches, nested, targetSubpath)
}

// cloneEnv returns auth environment overrides for a submodule's URL, if the
// forge-auth collaborator is configured; nil otherwise. See
// internal/forgeauth for the concrete AuthProvider implementation.
func (o *Orchestrator) cloneEnv(url string) []string {
	if o.Auth == nil {
		return nil
	}
	return o.Auth.EnvFor(url)
}

// forgeHint logs the forge API's view of name's default branch and
// branches, if a ForgeDiscovery collaborator is configured and recognizes
// remoteURL's host. It is a latency optimization only (SPEC_FULL
// SUPPLEMENTED FEATURES #1) — discoverOne always reconciles against
// fetch_all_branches/list_branches regardless of what this reports.
func (o *Orchestrator) forgeHint(ctx context.Context, name, remoteURL string) {
	if o.Forge == nil || remoteURL == "" {
		return
	}
	info, handled, err := o.Forge.Discover(ctx, remoteURL)
	if err != nil {
		o.logger().Warn("forge-assisted discovery failed", "repo", name, "err", err)
		return
	}
	if !handled {
		return
	}
	o.logger().Debug("forge-assisted discovery hint", "repo", name,
		"default_branch", info.DefaultBranch, "branches", len(info.Branches))
}

// AuthProvider is the narrow collaborator Discover consults for per-URL
// clone credentials (spec SPEC_FULL "Authenticated clone support").
type AuthProvider interface {
	EnvFor(url string) []string
}

func submoduleName(path string) string {
	return filepath.Base(path)
}

// checkSubpathCollisions is the discovery-time fatal check of spec §9 Open
// Question 2: two first-layer submodules cannot declare the same path.
func checkSubpathCollisions(subs []vcsdriver.Submodule) error {
	seen := make(map[string][]string)
	for _, s := range subs {
		seen[s.Path] = append(seen[s.Path], s.Path)
	}
	for path, occurrences := range seen {
		if len(occurrences) > 1 {
			return &PathCollisionError{Subpath: path, Repos: occurrences}
		}
	}
	return nil
}

func checkTargetSubpathCollisions(repos []*repomodel.Repository) error {
	byPath := make(map[string][]string)
	for _, r := range repos {
		byPath[r.TargetSubpath] = append(byPath[r.TargetSubpath], r.Name)
	}
	var collidingPaths []string
	for path, names := range byPath {
		if len(names) > 1 {
			collidingPaths = append(collidingPaths, path)
		}
	}
	if len(collidingPaths) == 0 {
		return nil
	}
	sort.Strings(collidingPaths)
	first := collidingPaths[0]
	return &PathCollisionError{Subpath: first, Repos: byPath[first]}
}

func (o *Orchestrator) emitDiscovered(r *repomodel.Repository) {
	var nested []report.NestedSubmoduleEntry
	for _, n := range r.NestedSubmodules {
		nested = append(nested, report.NestedSubmoduleEntry{Path: n.PathRelativeToOwner, URL: n.URL, SHA: n.SHA})
	}
	o.Report.AppendRepoDiscovered(report.RepoDiscovered{
		Name:             r.Name,
		DefaultBranch:    r.DefaultBranch,
		Branches:         r.BranchNames(),
		NestedSubmodules: nested,
	})
}
