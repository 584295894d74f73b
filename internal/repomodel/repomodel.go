// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

// Package repomodel is the in-memory description of a participating
// repository (C2 in SPEC_FULL.md): name, local path, default branch, branch
// set, and any nested submodules it declares.
package repomodel

import "fmt"

// NestedSubmodule is a second-layer submodule declared inside a first-layer
// repository, preserved verbatim (spec §3 NestedSubmodule).
type NestedSubmodule struct {
	PathRelativeToOwner string
	URL                 string
	SHA                 string
}

// Repository is immutable once Discover has populated it. Equality is by
// Name, per spec §4.2.
type Repository struct {
	Name             string
	LocalPath        string
	DefaultBranch    string
	Branches         map[string]bool
	NestedSubmodules []NestedSubmodule
	TargetSubpath    string
}

// New constructs a Repository and establishes the invariant that
// DefaultBranch is itself a member of Branches (spec §3) by adding it to the
// set when branches lacks it. It returns an error only for an empty
// defaultBranch.
func New(name, localPath, defaultBranch string, branches []string, nested []NestedSubmodule, targetSubpath string) (*Repository, error) {
	set := make(map[string]bool, len(branches))
	for _, b := range branches {
		set[b] = true
	}
	if !set[defaultBranch] {
		set[defaultBranch] = true
	}
	if defaultBranch == "" {
		return nil, fmt.Errorf("repository %q: empty default branch", name)
	}
	return &Repository{
		Name:             name,
		LocalPath:        localPath,
		DefaultBranch:    defaultBranch,
		Branches:         set,
		NestedSubmodules: nested,
		TargetSubpath:    targetSubpath,
	}, nil
}

// HasBranch reports whether branch exists in this repository.
func (r *Repository) HasBranch(branch string) bool {
	return r.Branches[branch]
}

// BranchNames returns the repository's branches as a sorted-free slice
// (callers that need determinism sort it themselves — see resolver).
func (r *Repository) BranchNames() []string {
	names := make([]string, 0, len(r.Branches))
	for b := range r.Branches {
		names = append(names, b)
	}
	return names
}

// Equal implements the name-based equality from spec §4.2.
func (r *Repository) Equal(other *Repository) bool {
	if r == nil || other == nil {
		return r == other
	}
	return r.Name == other.Name
}

// MetaRepoTargetSubpath is the fixed target path for the meta-repo itself
// (spec §3: "for the meta-repo it is the root").
const MetaRepoTargetSubpath = "."
