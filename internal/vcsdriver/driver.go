// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

package vcsdriver

import (
	"context"
	"fmt"
	"strings"

	"github.com/monomaker/monomaker/internal/gitcmd"
)

// Driver is the narrow VCS adapter described by SPEC_FULL §4.1 (C1). Every
// method is a pure function of (repository path, arguments); the Driver
// itself never retries or interprets failures beyond classifying them into
// the typed errors in errors.go.
type Driver struct {
	exec *gitcmd.Executor
	log  Logger
}

// Option configures a Driver.
type Option func(*Driver)

// WithExecutor swaps in a pre-configured gitcmd.Executor, primarily for
// tests that need a fake git binary or a short timeout.
func WithExecutor(e *gitcmd.Executor) Option {
	return func(d *Driver) {
		if e != nil {
			d.exec = e
		}
	}
}

// WithLogger attaches a Logger for Debug/Info/Warn/Error diagnostics.
func WithLogger(log Logger) Option {
	return func(d *Driver) {
		if log != nil {
			d.log = log
		}
	}
}

// NewDriver builds a Driver backed by the system git binary.
func NewDriver(opts ...Option) *Driver {
	d := &Driver{
		exec: gitcmd.NewExecutor(),
		log:  NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Clone clones url into dest. env, if non-empty, is appended to the
// subprocess environment (used by internal/forgeauth to inject tokens).
func (d *Driver) Clone(ctx context.Context, url, dest string, env []string) error {
	d.log.Info("cloning repository", "url", url, "dest", dest)
	if _, err := d.exec.WithExtraEnv(env).RunOutput(ctx, "", "clone", "--no-single-branch", url, dest); err != nil {
		return classify(err, dest, "")
	}
	return nil
}

// FetchAllBranches ensures every branch on origin exists as a local branch
// head in repo, per spec §4.1. It fetches all remote heads and then creates
// a local tracking branch for any that are missing.
func (d *Driver) FetchAllBranches(ctx context.Context, repo string) error {
	if _, err := d.exec.RunOutput(ctx, repo, "fetch", "origin", "+refs/heads/*:refs/remotes/origin/*", "--prune"); err != nil {
		return classify(err, repo, "")
	}

	remoteBranches, err := d.exec.RunLines(ctx, repo, "for-each-ref", "--format=%(refname:short)", "refs/remotes/origin")
	if err != nil {
		return classify(err, repo, "")
	}

	existing := make(map[string]bool)
	localBranches, err := d.ListBranches(ctx, repo)
	if err != nil {
		return err
	}
	for _, b := range localBranches {
		existing[b] = true
	}

	for _, remote := range remoteBranches {
		name := strings.TrimPrefix(remote, "origin/")
		if name == "" || name == "HEAD" || existing[name] {
			continue
		}
		if _, err := d.exec.RunOutput(ctx, repo, "branch", "--track", name, remote); err != nil {
			return classify(err, repo, name)
		}
	}
	return nil
}

// ListBranches returns every local branch head name in repo.
func (d *Driver) ListBranches(ctx context.Context, repo string) ([]string, error) {
	lines, err := d.exec.RunLines(ctx, repo, "for-each-ref", "--format=%(refname:short)", "refs/heads")
	if err != nil {
		return nil, classify(err, repo, "")
	}
	return lines, nil
}

// DefaultBranch resolves the branch the remote designates as HEAD, per the
// glossary definition. It never guesses from local state.
func (d *Driver) DefaultBranch(ctx context.Context, repo string) (string, error) {
	out, err := d.exec.RunOutput(ctx, repo, "ls-remote", "--symref", "origin", "HEAD")
	if err != nil {
		return "", classify(err, repo, "HEAD")
	}
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "ref:") {
			continue
		}
		fields := strings.Fields(line)
		// "ref: refs/heads/main	HEAD"
		if len(fields) >= 2 {
			return strings.TrimPrefix(fields[1], "refs/heads/"), nil
		}
	}
	return "", &RefNotFoundError{Repo: repo, Ref: "HEAD"}
}

// ListSubmodules reads the .gitmodules config of repo at the given ref and
// pairs each declared path with the SHA currently recorded in the tree.
func (d *Driver) ListSubmodules(ctx context.Context, repo, ref string) ([]Submodule, error) {
	cfgBlob := fmt.Sprintf("%s:.gitmodules", ref)
	raw, err := d.exec.RunOutput(ctx, repo, "show", cfgBlob)
	if err != nil {
		// No .gitmodules file at this ref means no submodules; that is not
		// a driver-level failure.
		return nil, nil
	}

	paths, urls := parseGitmodules(raw)

	shas, err := d.exec.RunLines(ctx, repo, "ls-tree", "-r", ref)
	if err != nil {
		return nil, classify(err, repo, ref)
	}
	shaByPath := make(map[string]string, len(shas))
	for _, line := range shas {
		// "<mode> commit <sha>\t<path>" for gitlink entries.
		parts := strings.SplitN(line, "\t", 2)
		if len(parts) != 2 {
			continue
		}
		meta := strings.Fields(parts[0])
		if len(meta) != 3 || meta[1] != "commit" {
			continue
		}
		shaByPath[parts[1]] = meta[2]
	}

	subs := make([]Submodule, 0, len(paths))
	for _, path := range paths {
		subs = append(subs, Submodule{
			Path: path,
			URL:  urls[path],
			SHA:  shaByPath[path],
		})
	}
	return subs, nil
}

// parseGitmodules extracts submodule.<name>.path and submodule.<name>.url
// pairs from the raw contents of a .gitmodules file, in declaration order.
func parseGitmodules(raw string) (paths []string, urls map[string]string) {
	urls = make(map[string]string)
	var pathByName = make(map[string]string)
	var order []string
	var current string

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "[submodule"):
			current = strings.Trim(strings.TrimPrefix(line, "[submodule"), " \"]")
			order = append(order, current)
		case strings.HasPrefix(line, "path ") || strings.HasPrefix(line, "path="):
			pathByName[current] = valueOf(line)
		case strings.HasPrefix(line, "url ") || strings.HasPrefix(line, "url="):
			if p := pathByName[current]; p != "" {
				urls[p] = valueOf(line)
			} else {
				urls[current] = valueOf(line)
			}
		}
	}

	for _, name := range order {
		if p, ok := pathByName[name]; ok {
			paths = append(paths, p)
		}
	}
	// Second pass in case url was parsed before path for a given stanza.
	for _, name := range order {
		p, ok := pathByName[name]
		if !ok {
			continue
		}
		if _, ok := urls[p]; !ok {
			if u, ok := urls[name]; ok {
				urls[p] = u
			}
		}
	}
	return paths, urls
}

func valueOf(kv string) string {
	idx := strings.IndexAny(kv, " =")
	if idx < 0 {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(kv[idx:]), "="))
}

// Checkout switches repo's working tree to ref.
func (d *Driver) Checkout(ctx context.Context, repo, ref string) error {
	if _, err := d.exec.RunOutput(ctx, repo, "checkout", ref); err != nil {
		return classify(err, repo, ref)
	}
	return nil
}

// CreateBranch creates name in repo starting at startPoint and checks it out.
func (d *Driver) CreateBranch(ctx context.Context, repo, name, startPoint string) error {
	if _, err := d.exec.RunOutput(ctx, repo, "checkout", "-b", name, startPoint); err != nil {
		return classify(err, repo, startPoint)
	}
	return nil
}

// CurrentSHA returns the commit HEAD currently resolves to in repo.
func (d *Driver) CurrentSHA(ctx context.Context, repo string) (string, error) {
	out, err := d.exec.RunOutput(ctx, repo, "rev-parse", "HEAD")
	if err != nil {
		return "", classify(err, repo, "HEAD")
	}
	return out, nil
}

// SubtreeAdd imports the full history of ref from sourceRepoPath, rooted
// under targetSubpath in monorepo, producing one merge commit (spec §4.1).
// It is equivalent in effect to `git subtree add`, which is exactly what it
// shells out to: a local filesystem path is a valid "repository" argument
// to git-subtree, so no intermediate remote needs to be registered.
func (d *Driver) SubtreeAdd(ctx context.Context, monorepo, sourceRepoPath, ref, targetSubpath string) (string, error) {
	message := fmt.Sprintf("Import %s at %s into %s", sourceRepoPath, ref, targetSubpath)
	_, err := d.exec.RunOutput(ctx, monorepo, "subtree", "add",
		"--prefix="+targetSubpath, sourceRepoPath, ref, "-m", message)
	if err != nil {
		return "", classify(err, monorepo, ref)
	}
	return d.CurrentSHA(ctx, monorepo)
}

// MergeOurs produces a merge commit in monorepo whose tree equals HEAD's
// tree and whose parents are (HEAD, otherBranch) — used to record meta-repo
// merge topology without altering content (spec §4.1).
func (d *Driver) MergeOurs(ctx context.Context, monorepo, otherBranch string) (string, error) {
	_, err := d.exec.RunOutput(ctx, monorepo, "merge", "-s", "ours", "--no-edit", "--allow-unrelated-histories", otherBranch)
	if err != nil {
		return "", classify(err, monorepo, otherBranch)
	}
	return d.CurrentSHA(ctx, monorepo)
}

// CommitEmpty records a commit with no tree changes, used to seed the
// shared initial commit every synthesized branch is rooted at.
func (d *Driver) CommitEmpty(ctx context.Context, monorepo, message string) (string, error) {
	_, err := d.exec.RunOutput(ctx, monorepo, "commit", "--allow-empty", "-m", message)
	if err != nil {
		return "", classify(err, monorepo, "")
	}
	return d.CurrentSHA(ctx, monorepo)
}

// Tag applies a lightweight tag to monorepo's current HEAD.
func (d *Driver) Tag(ctx context.Context, monorepo, name string) error {
	if _, err := d.exec.RunOutput(ctx, monorepo, "tag", name); err != nil {
		return classify(err, monorepo, "")
	}
	return nil
}

// InitRepo initializes an empty repository at path.
func (d *Driver) InitRepo(ctx context.Context, path string) error {
	if _, err := d.exec.RunOutput(ctx, "", "init", path); err != nil {
		return classify(err, path, "")
	}
	return nil
}

// CreateOrphanBranch checks out a new branch in monorepo with no parent
// history, used once to create the shared root branch that every
// synthesized branch starts from.
func (d *Driver) CreateOrphanBranch(ctx context.Context, monorepo, name string) error {
	if _, err := d.exec.RunOutput(ctx, monorepo, "checkout", "--orphan", name); err != nil {
		return classify(err, monorepo, name)
	}
	if _, err := d.exec.RunOutput(ctx, monorepo, "reset", "--hard"); err != nil {
		return classify(err, monorepo, name)
	}
	return nil
}

// BranchExists reports whether name is already a local branch in monorepo.
func (d *Driver) BranchExists(ctx context.Context, monorepo, name string) (bool, error) {
	branches, err := d.ListBranches(ctx, monorepo)
	if err != nil {
		return false, err
	}
	for _, b := range branches {
		if b == name {
			return true, nil
		}
	}
	return false, nil
}

// AddSubmodule records a gitlink in monorepo at path pinned to sha, without
// fetching the nested submodule's content (spec §4.5 step 4: nested
// submodules are preserved verbatim, not inlined).
func (d *Driver) AddSubmodule(ctx context.Context, monorepo, path, url, sha string) error {
	if _, err := d.exec.RunOutput(ctx, monorepo, "update-index", "--add", "--cacheinfo",
		"160000", sha, path); err != nil {
		return classify(err, monorepo, sha)
	}
	if _, err := d.exec.RunOutput(ctx, monorepo, "config", "-f", ".gitmodules",
		fmt.Sprintf("submodule.%s.path", path), path); err != nil {
		return classify(err, monorepo, "")
	}
	if _, err := d.exec.RunOutput(ctx, monorepo, "config", "-f", ".gitmodules",
		fmt.Sprintf("submodule.%s.url", path), url); err != nil {
		return classify(err, monorepo, "")
	}
	if _, err := d.exec.RunOutput(ctx, monorepo, "add", ".gitmodules"); err != nil {
		return classify(err, monorepo, "")
	}
	return nil
}

// PathExistsInTree reports whether path has tracked content in repo at ref.
// Used to detect genuine meta-repo/submodule collisions (spec §4.5(c)) rather
// than assuming every submodule import collides with the meta-repo's tree.
func (d *Driver) PathExistsInTree(ctx context.Context, repo, ref, path string) (bool, error) {
	result, err := d.exec.Run(ctx, repo, "cat-file", "-e", ref+":"+path)
	if err != nil {
		return false, classify(err, repo, ref)
	}
	return result.ExitCode == 0, nil
}

// UpdateRef points ref at sha directly, without touching the working tree or
// HEAD. Used to quarantine a partially synthesized branch under
// refs/monomaker/failed/<branch> (spec §4.5 failure semantics).
func (d *Driver) UpdateRef(ctx context.Context, repo, ref, sha string) error {
	if _, err := d.exec.RunOutput(ctx, repo, "update-ref", ref, sha); err != nil {
		return classify(err, repo, ref)
	}
	return nil
}

// DeleteRef removes ref from repo.
func (d *Driver) DeleteRef(ctx context.Context, repo, ref string) error {
	if _, err := d.exec.RunOutput(ctx, repo, "update-ref", "-d", ref); err != nil {
		return classify(err, repo, ref)
	}
	return nil
}

// MergeParents returns the parent SHAs of commit in repo, in order. A
// non-merge commit returns exactly one parent (zero for a root commit).
func (d *Driver) MergeParents(ctx context.Context, repo, commit string) ([]string, error) {
	out, err := d.exec.RunOutput(ctx, repo, "rev-list", "--parents", "-n", "1", commit)
	if err != nil {
		return nil, classify(err, repo, commit)
	}
	fields := strings.Fields(out)
	if len(fields) <= 1 {
		return nil, nil
	}
	return fields[1:], nil
}

// MergeCommitsBetween lists, in topological order (oldest first), every
// commit reachable from head but not from base, restricted to merge
// commits — the DAG the History Synthesizer's Mode B walks (spec §4.5).
func (d *Driver) MergeCommitsBetween(ctx context.Context, repo, base, head string) ([]string, error) {
	lines, err := d.exec.RunLines(ctx, repo, "rev-list", "--merges", "--topo-order", "--reverse", base+".."+head)
	if err != nil {
		return nil, classify(err, repo, head)
	}
	return lines, nil
}

// CommitsBetween lists every non-merge commit reachable from head but not
// from base, oldest first.
func (d *Driver) CommitsBetween(ctx context.Context, repo, base, head string) ([]string, error) {
	lines, err := d.exec.RunLines(ctx, repo, "rev-list", "--no-merges", "--topo-order", "--reverse", base+".."+head)
	if err != nil {
		return nil, classify(err, repo, head)
	}
	return lines, nil
}
