// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

package synth

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/monomaker/monomaker/internal/repomodel"
	"github.com/monomaker/monomaker/internal/report"
	"github.com/monomaker/monomaker/internal/resolver"
)

// fakeDriver is a minimal, fully in-memory stand-in for vcsdriver.Driver,
// letting Mode A/B and Quarantine be exercised without a real git binary.
type fakeDriver struct {
	sha           string
	branchExists  map[string]bool
	existsInTree  map[string]bool // keyed "ref:path"
	mergeCommits  []string
	mergeParents  map[string][]string
	subtreeAdds   []string
	submoduleAdds []string
	updateRefs    map[string]string
	deletedRefs   []string
}

func (f *fakeDriver) CreateOrphanBranch(ctx context.Context, monorepo, name string) error { return nil }

func (f *fakeDriver) BranchExists(ctx context.Context, monorepo, name string) (bool, error) {
	return f.branchExists[name], nil
}

func (f *fakeDriver) Checkout(ctx context.Context, monorepo, ref string) error { return nil }

func (f *fakeDriver) CommitEmpty(ctx context.Context, monorepo, message string) (string, error) {
	return f.sha, nil
}

func (f *fakeDriver) SubtreeAdd(ctx context.Context, monorepo, sourceRepoPath, ref, targetSubpath string) (string, error) {
	f.subtreeAdds = append(f.subtreeAdds, sourceRepoPath+"@"+ref+"->"+targetSubpath)
	return f.sha, nil
}

func (f *fakeDriver) MergeOurs(ctx context.Context, monorepo, otherBranch string) (string, error) {
	return f.sha, nil
}

func (f *fakeDriver) AddSubmodule(ctx context.Context, monorepo, path, url, sha string) error {
	f.submoduleAdds = append(f.submoduleAdds, path)
	return nil
}

func (f *fakeDriver) CurrentSHA(ctx context.Context, monorepo string) (string, error) {
	return f.sha, nil
}

func (f *fakeDriver) MergeParents(ctx context.Context, repo, commit string) ([]string, error) {
	return f.mergeParents[commit], nil
}

func (f *fakeDriver) MergeCommitsBetween(ctx context.Context, repo, base, head string) ([]string, error) {
	return f.mergeCommits, nil
}

func (f *fakeDriver) CreateBranch(ctx context.Context, repo, name, startPoint string) error { return nil }

func (f *fakeDriver) PathExistsInTree(ctx context.Context, repo, ref, path string) (bool, error) {
	return f.existsInTree[ref+":"+path], nil
}

func (f *fakeDriver) UpdateRef(ctx context.Context, repo, ref, sha string) error {
	if f.updateRefs == nil {
		f.updateRefs = make(map[string]string)
	}
	f.updateRefs[ref] = sha
	return nil
}

func (f *fakeDriver) DeleteRef(ctx context.Context, repo, ref string) error {
	f.deletedRefs = append(f.deletedRefs, ref)
	return nil
}

func mustRepo(t *testing.T, name, defaultBranch, targetSubpath string) *repomodel.Repository {
	t.Helper()
	r, err := repomodel.New(name, "/src/"+name, defaultBranch, []string{defaultBranch}, nil, targetSubpath)
	if err != nil {
		t.Fatalf("repomodel.New(%q): %v", name, err)
	}
	return r
}

// TestSynthesizeModeAPathOverride verifies spec §4.5(c)/S6: a PathOverride is
// recorded only when the meta-repo's own tree actually has content at the
// submodule's target path, not merely because a submodule was imported (S1).
func TestSynthesizeModeAPathOverride(t *testing.T) {
	tests := []struct {
		name      string
		collision bool
		want      []report.PathOverride
	}{
		{name: "only-defaults, no collision (S1)", collision: false, want: nil},
		{name: "meta and submodule both contain the path (S6)", collision: true, want: []report.PathOverride{
			{Path: "a", Winner: "a", Branch: "main"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta := mustRepo(t, "meta", "main", repomodel.MetaRepoTargetSubpath)
			sub := mustRepo(t, "a", "main", "a")
			plan := resolver.BranchPlan{
				Branch: "main",
				Entries: []resolver.PlanEntry{
					{Repo: sub, BranchUsed: "main"},
					{Repo: meta, BranchUsed: "main"},
				},
			}

			fd := &fakeDriver{sha: "deadbeef", existsInTree: map[string]bool{}}
			if tt.collision {
				fd.existsInTree["main:a"] = true
			}

			s := New(fd, "/monorepo", "meta")
			sha, overrides, err := s.synthesizeModeA(context.Background(), plan)
			if err != nil {
				t.Fatalf("synthesizeModeA: %v", err)
			}
			if sha != "deadbeef" {
				t.Errorf("finalSHA = %q, want deadbeef", sha)
			}
			if diff := cmp.Diff(tt.want, overrides); diff != "" {
				t.Errorf("overrides mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// TestSynthesizeModeANestedSubmodulePreserved verifies spec §4.5/S5: a nested
// submodule pinned in a first-layer repo is carried into the monorepo as a
// gitlink at its owner-relative path, not flattened or dropped.
func TestSynthesizeModeANestedSubmodulePreserved(t *testing.T) {
	meta := mustRepo(t, "meta", "main", repomodel.MetaRepoTargetSubpath)
	subA, err := repomodel.New("a", "/src/a", "main", []string{"main"},
		[]repomodel.NestedSubmodule{{PathRelativeToOwner: "vendor/lib", URL: "https://example.com/lib.git", SHA: "deadbeef"}}, "a")
	if err != nil {
		t.Fatalf("repomodel.New(a): %v", err)
	}

	plan := resolver.BranchPlan{
		Branch: "main",
		Entries: []resolver.PlanEntry{
			{Repo: subA, BranchUsed: "main"},
			{Repo: meta, BranchUsed: "main"},
		},
	}

	fd := &fakeDriver{sha: "deadbeef", existsInTree: map[string]bool{}}
	s := New(fd, "/monorepo", "meta")
	if _, _, err := s.synthesizeModeA(context.Background(), plan); err != nil {
		t.Fatalf("synthesizeModeA: %v", err)
	}

	want := []string{"a/vendor/lib"}
	if diff := cmp.Diff(want, fd.submoduleAdds); diff != "" {
		t.Errorf("submoduleAdds mismatch (-want +got):\n%s", diff)
	}
}

// TestSynthesizeModeANestedSubmoduleCollision verifies the fatal
// PathCollisionError of §4.5 step 4 when two first-layer repos declare a
// nested submodule at the same path with different content.
func TestSynthesizeModeANestedSubmoduleCollision(t *testing.T) {
	meta := mustRepo(t, "meta", "main", repomodel.MetaRepoTargetSubpath)
	subA, err := repomodel.New("a", "/src/a", "main", []string{"main"},
		[]repomodel.NestedSubmodule{{PathRelativeToOwner: "vendor/x", URL: "u1", SHA: "s1"}}, "a")
	if err != nil {
		t.Fatalf("repomodel.New(a): %v", err)
	}
	subB, err := repomodel.New("b", "/src/b", "main", []string{"main"},
		[]repomodel.NestedSubmodule{{PathRelativeToOwner: "vendor/x", URL: "u2", SHA: "s2"}}, "a")
	if err != nil {
		t.Fatalf("repomodel.New(b): %v", err)
	}
	// Both a and b target "a", so their nested submodules collide at
	// "a/vendor/x" with different URL/SHA pairs.

	plan := resolver.BranchPlan{
		Branch: "main",
		Entries: []resolver.PlanEntry{
			{Repo: meta, BranchUsed: "main"},
			{Repo: subA, BranchUsed: "main"},
			{Repo: subB, BranchUsed: "main"},
		},
	}

	fd := &fakeDriver{sha: "deadbeef", existsInTree: map[string]bool{}}
	s := New(fd, "/monorepo", "meta")
	_, _, err = s.synthesizeModeA(context.Background(), plan)
	if _, ok := err.(*PathCollisionError); !ok {
		t.Fatalf("synthesizeModeA error = %v, want *PathCollisionError", err)
	}
}

// TestQuarantine verifies the scratch-ref convention of spec §4.5's failure
// semantics / §8.2: a partial branch is moved off refs/heads/<branch> rather
// than left in place.
func TestQuarantine(t *testing.T) {
	tests := []struct {
		name         string
		branchExists bool
	}{
		{name: "partial branch exists: moved to scratch ref", branchExists: true},
		{name: "branch never created: no-op", branchExists: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fd := &fakeDriver{sha: "cafebabe", branchExists: map[string]bool{"feature-x": tt.branchExists}}
			s := New(fd, "/monorepo", "meta")

			if err := s.Quarantine(context.Background(), "feature-x"); err != nil {
				t.Fatalf("Quarantine: %v", err)
			}

			if tt.branchExists {
				if got := fd.updateRefs[ScratchRef("feature-x")]; got != "cafebabe" {
					t.Errorf("UpdateRef(%s) = %q, want cafebabe", ScratchRef("feature-x"), got)
				}
				if len(fd.deletedRefs) != 1 || fd.deletedRefs[0] != "refs/heads/feature-x" {
					t.Errorf("deletedRefs = %v, want [refs/heads/feature-x]", fd.deletedRefs)
				}
				return
			}

			if len(fd.updateRefs) != 0 {
				t.Errorf("expected no UpdateRef calls, got %v", fd.updateRefs)
			}
			if len(fd.deletedRefs) != 0 {
				t.Errorf("expected no DeleteRef calls, got %v", fd.deletedRefs)
			}
		})
	}
}
