// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

package orchestrator

import (
	"github.com/monomaker/monomaker/internal/repomodel"
	"github.com/monomaker/monomaker/internal/report"
	"github.com/monomaker/monomaker/internal/resolver"
)

// Resolve runs the Branch Resolver (C4) over the discovered repos and
// records its decisions in the Migration Report (spec §4.4): one
// WhitelistApplied record, then one BranchResolved per effective branch,
// then one Skip per whitelist entry the resolver dropped.
func (o *Orchestrator) Resolve(repos []*repomodel.Repository, whitelist []string) resolver.Result {
	result := resolver.Resolve(repos, whitelist)

	effective := make([]string, 0, len(result.Plans))
	for _, p := range result.Plans {
		effective = append(effective, p.Branch)
	}
	o.Report.AppendWhitelistApplied(report.WhitelistApplied{
		Requested: whitelist,
		Effective: effective,
	})

	for _, plan := range result.Plans {
		entries := make([]report.PlanEntry, 0, len(plan.Entries))
		for _, e := range plan.Entries {
			entries = append(entries, report.PlanEntry{
				Repo:       e.Repo.Name,
				BranchUsed: e.BranchUsed,
				FellBack:   e.FellBack,
			})
		}
		o.Report.AppendBranchResolved(report.BranchResolved{Branch: plan.Branch, Plan: entries})
	}

	for _, skip := range result.Skips {
		o.Report.AppendSkip(report.Skip{Branch: skip.Branch, Reason: string(skip.Reason)})
	}

	return result
}
