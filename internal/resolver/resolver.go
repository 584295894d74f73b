// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

// Package resolver implements the Branch Resolver (C4 in SPEC_FULL.md): the
// per-feature-branch, per-repo choice between a repo's own branch and its
// default branch, plus the whitelist policy of spec §4.4.
package resolver

import (
	"sort"

	"github.com/monomaker/monomaker/internal/repomodel"
)

// PlanEntry is one repo's resolved choice for a given branch (spec §3).
type PlanEntry struct {
	Repo       *repomodel.Repository
	BranchUsed string
	FellBack   bool
}

// BranchPlan maps every participating repo to its PlanEntry for one feature
// branch B (spec §3). Entries are kept in repo declaration order, not as a
// map, so synthesis order (spec §4.5) is deterministic without a second sort.
type BranchPlan struct {
	Branch  string
	Entries []PlanEntry
}

// EntryFor returns the PlanEntry for repo name, if present.
func (p BranchPlan) EntryFor(name string) (PlanEntry, bool) {
	for _, e := range p.Entries {
		if e.Repo.Name == name {
			return e, true
		}
	}
	return PlanEntry{}, false
}

// SkipReason names why a requested branch did not produce a BranchPlan.
type SkipReason string

// UnknownWhitelistBranch is recorded when a whitelist entry matches no
// repository's branch set (spec §4.4 guarantee 3).
const UnknownWhitelistBranch SkipReason = "unknown-branch"

// Skip is a branch the resolver declined to plan, with the reason.
type Skip struct {
	Branch string
	Reason SkipReason
}

// Result is the resolver's complete output: a synthesis-ordered list of
// plans (spec §4.4 step 5) plus any whitelist entries that were dropped.
type Result struct {
	Plans []BranchPlan
	Skips []Skip
}

// Resolve implements spec §4.4's five-step algorithm. repos is the ordered
// list of participating Repository models (meta-repo first, by convention);
// whitelist is nil for "no whitelist" (step 3's else branch).
func Resolve(repos []*repomodel.Repository, whitelist []string) Result {
	allBranches := make(map[string]bool)
	defaults := make([]string, 0, len(repos))
	defaultSet := make(map[string]bool)
	for _, r := range repos {
		for b := range r.Branches {
			allBranches[b] = true
		}
		if !defaultSet[r.DefaultBranch] {
			defaultSet[r.DefaultBranch] = true
			defaults = append(defaults, r.DefaultBranch)
		}
	}

	var effective []string
	var skips []Skip
	if whitelist != nil {
		requested := dedupe(whitelist)
		seen := make(map[string]bool)
		for _, b := range requested {
			if allBranches[b] {
				if !seen[b] {
					seen[b] = true
					effective = append(effective, b)
				}
			} else if !defaultSet[b] {
				skips = append(skips, Skip{Branch: b, Reason: UnknownWhitelistBranch})
			}
		}
		for _, d := range defaults {
			if !seen[d] {
				seen[d] = true
				effective = append(effective, d)
			}
		}
	} else {
		for b := range allBranches {
			effective = append(effective, b)
		}
	}

	ordered := orderEffective(effective, defaults)

	plans := make([]BranchPlan, 0, len(ordered))
	for _, b := range ordered {
		plans = append(plans, buildPlan(repos, b))
	}

	return Result{Plans: plans, Skips: skips}
}

// buildPlan implements spec §4.4 step 4 for one branch.
func buildPlan(repos []*repomodel.Repository, branch string) BranchPlan {
	entries := make([]PlanEntry, 0, len(repos))
	for _, r := range repos {
		if r.HasBranch(branch) {
			entries = append(entries, PlanEntry{Repo: r, BranchUsed: branch, FellBack: false})
		} else {
			entries = append(entries, PlanEntry{Repo: r, BranchUsed: r.DefaultBranch, FellBack: true})
		}
	}
	return BranchPlan{Branch: branch, Entries: entries}
}

// orderEffective sorts the effective set per spec §4.4 step 5: default
// branches first (stable, in repo declaration order), then the remaining
// branches lexicographically.
func orderEffective(effective, defaults []string) []string {
	isDefault := make(map[string]bool, len(defaults))
	for _, d := range defaults {
		isDefault[d] = true
	}

	inEffective := make(map[string]bool, len(effective))
	for _, b := range effective {
		inEffective[b] = true
	}

	ordered := make([]string, 0, len(effective))
	for _, d := range defaults {
		if inEffective[d] {
			ordered = append(ordered, d)
		}
	}

	var rest []string
	for _, b := range effective {
		if !isDefault[b] {
			rest = append(rest, b)
		}
	}
	sort.Strings(rest)

	return append(ordered, rest...)
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
