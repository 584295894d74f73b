// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

package orchestrator

import (
	"context"
	"fmt"

	"github.com/monomaker/monomaker/internal/report"
	"github.com/monomaker/monomaker/internal/resolver"
	"github.com/monomaker/monomaker/internal/runstate"
	"github.com/monomaker/monomaker/internal/synth"
)

// SynthesizeAll drives the History Synthesizer (C5) across every resolved
// plan, sequentially (spec §5: "branches are synthesized sequentially so
// that the monorepo working tree has exactly one writer"). A per-branch
// failure is recorded and does not abort the run; it only sets the
// partial-success outcome the caller reports via exit code 3.
//
// When o.State is set (SPEC_FULL SUPPLEMENTED FEATURES #4, --resume), a
// branch already marked runstate.StatusDone from a prior invocation is
// skipped, and progress is persisted after every branch so a second
// invocation against the same workspace can pick up where the first left
// off.
func (o *Orchestrator) SynthesizeAll(ctx context.Context, monorepoPath string, plans []resolver.BranchPlan) (anyFailed bool, err error) {
	s := synth.New(o.driver, monorepoPath, metaRepoName, synth.WithMergeTopology(o.MergeTopology))

	var state runstate.State
	var done map[string]bool
	if o.State != nil {
		state, err = o.State.Load(ctx)
		if err != nil {
			return anyFailed, fmt.Errorf("load run state: %w", err)
		}
		done = state.Done()
	}

	for _, plan := range plans {
		if ctx.Err() != nil {
			return anyFailed, Cancelled{}
		}

		if done[plan.Branch] {
			o.logger().Debug("skipping branch already synthesized in a prior run", "branch", plan.Branch)
			continue
		}

		metaHasMerges, hmErr := o.metaRepoHasMerges(ctx, plan)
		if hmErr != nil {
			return anyFailed, hmErr
		}

		outcome := s.Synthesize(ctx, plan, metaHasMerges)
		if outcome.Err != nil {
			anyFailed = true
			if qErr := s.Quarantine(ctx, plan.Branch); qErr != nil {
				o.logger().Warn("failed to quarantine partial branch", "branch", plan.Branch, "error", qErr)
			}
			o.Report.AppendFailure(report.Failure{
				Step:   fmt.Sprintf("synthesize:%s", plan.Branch),
				Detail: outcome.Err.Error(),
			})
			if o.State != nil {
				state.Upsert(plan.Branch, runstate.StatusFailed, outcome.Err.Error())
				if sErr := o.State.Save(ctx, state); sErr != nil {
					o.logger().Warn("failed to persist run state", "branch", plan.Branch, "error", sErr)
				}
			}
			continue
		}

		o.Report.AppendBranchSynthesized(report.BranchSynthesized{
			Branch:        plan.Branch,
			CommitSHA:     outcome.CommitSHA,
			PathOverrides: outcome.PathOverrides,
		})
		if o.State != nil {
			state.Upsert(plan.Branch, runstate.StatusDone, "")
			if sErr := o.State.Save(ctx, state); sErr != nil {
				o.logger().Warn("failed to persist run state", "branch", plan.Branch, "error", sErr)
			}
		}
	}

	return anyFailed, nil
}

// metaRepoHasMerges determines whether Mode B should run for plan, per
// spec §4.5: only consulted when the Orchestrator opted into merge
// topology (o.MergeTopology); Mode A is otherwise always used.
func (o *Orchestrator) metaRepoHasMerges(ctx context.Context, plan resolver.BranchPlan) (bool, error) {
	if !o.MergeTopology {
		return false, nil
	}
	entry, ok := plan.EntryFor(metaRepoName)
	if !ok {
		return false, nil
	}
	if !entry.FellBack && entry.BranchUsed == entry.Repo.DefaultBranch {
		return false, nil
	}
	commits, err := o.driver.MergeCommitsBetween(ctx, entry.Repo.LocalPath, entry.Repo.DefaultBranch, entry.BranchUsed)
	if err != nil {
		return false, &BranchEnumerationFailedError{Repo: entry.Repo.Name, Err: err}
	}
	return len(commits) > 0, nil
}
