// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/monomaker/monomaker/internal/report"
	"github.com/monomaker/monomaker/internal/vcsdriver"
)

// TestCheckSubpathCollisions verifies the discovery-time fatal check of spec
// §9 Open Question 2: two first-layer submodules cannot declare the same
// on-disk .gitmodules path.
func TestCheckSubpathCollisions(t *testing.T) {
	tests := []struct {
		name    string
		subs    []vcsdriver.Submodule
		wantErr bool
	}{
		{name: "no submodules", subs: nil},
		{name: "distinct paths", subs: []vcsdriver.Submodule{{Path: "a"}, {Path: "b"}}},
		{name: "duplicate path", subs: []vcsdriver.Submodule{{Path: "a"}, {Path: "a"}}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkSubpathCollisions(tt.subs)
			if tt.wantErr && err == nil {
				t.Fatal("checkSubpathCollisions: expected an error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("checkSubpathCollisions: unexpected error: %v", err)
			}
			if tt.wantErr {
				var collision *PathCollisionError
				if !errors.As(err, &collision) {
					t.Fatalf("checkSubpathCollisions error = %v, want *PathCollisionError", err)
				}
			}
		})
	}
}

// fakeDriver is a minimal orchestrator.Driver stand-in. Only the methods
// Discover actually calls are configurable; everything else is a no-op so
// the interface is satisfied without dragging in a real git binary.
type fakeDriver struct {
	defaultBranch    map[string]string
	defaultBranchErr map[string]error
	branches         map[string][]string
	submodules       map[string][]vcsdriver.Submodule
}

func (f *fakeDriver) Clone(ctx context.Context, url, dest string, env []string) error { return nil }
func (f *fakeDriver) FetchAllBranches(ctx context.Context, repo string) error          { return nil }

func (f *fakeDriver) ListBranches(ctx context.Context, repo string) ([]string, error) {
	return f.branches[repo], nil
}

func (f *fakeDriver) DefaultBranch(ctx context.Context, repo string) (string, error) {
	if err, ok := f.defaultBranchErr[repo]; ok {
		return "", err
	}
	return f.defaultBranch[repo], nil
}

func (f *fakeDriver) ListSubmodules(ctx context.Context, repo, ref string) ([]vcsdriver.Submodule, error) {
	return f.submodules[repo], nil
}

func (f *fakeDriver) CreateOrphanBranch(ctx context.Context, monorepo, name string) error { return nil }
func (f *fakeDriver) BranchExists(ctx context.Context, monorepo, name string) (bool, error) {
	return false, nil
}
func (f *fakeDriver) Checkout(ctx context.Context, monorepo, ref string) error { return nil }
func (f *fakeDriver) CommitEmpty(ctx context.Context, monorepo, message string) (string, error) {
	return "", nil
}
func (f *fakeDriver) SubtreeAdd(ctx context.Context, monorepo, sourceRepoPath, ref, targetSubpath string) (string, error) {
	return "", nil
}
func (f *fakeDriver) MergeOurs(ctx context.Context, monorepo, otherBranch string) (string, error) {
	return "", nil
}
func (f *fakeDriver) AddSubmodule(ctx context.Context, monorepo, path, url, sha string) error {
	return nil
}
func (f *fakeDriver) CurrentSHA(ctx context.Context, monorepo string) (string, error) { return "", nil }
func (f *fakeDriver) MergeParents(ctx context.Context, repo, commit string) ([]string, error) {
	return nil, nil
}
func (f *fakeDriver) MergeCommitsBetween(ctx context.Context, repo, base, head string) ([]string, error) {
	return nil, nil
}
func (f *fakeDriver) CreateBranch(ctx context.Context, repo, name, startPoint string) error {
	return nil
}
func (f *fakeDriver) PathExistsInTree(ctx context.Context, repo, ref, path string) (bool, error) {
	return false, nil
}
func (f *fakeDriver) UpdateRef(ctx context.Context, repo, ref, sha string) error { return nil }
func (f *fakeDriver) DeleteRef(ctx context.Context, repo, ref string) error     { return nil }
func (f *fakeDriver) InitRepo(ctx context.Context, path string) error           { return nil }
func (f *fakeDriver) Tag(ctx context.Context, monorepo, name string) error      { return nil }

// TestDiscoverNoDefaultBranch verifies that a repo whose default branch
// cannot be resolved is a fatal NoDefaultBranchError, not a silently empty
// Repository.
func TestDiscoverNoDefaultBranch(t *testing.T) {
	d := &fakeDriver{
		defaultBranch: map[string]string{},
	}
	o := New(d, "/workspace", report.New(time.Now()), nil, 0)

	_, err := o.Discover(context.Background(), "/meta")
	var noDefault *NoDefaultBranchError
	if !errors.As(err, &noDefault) {
		t.Fatalf("Discover error = %v, want *NoDefaultBranchError", err)
	}
}

// TestDiscoverSubmoduleSubpathCollision verifies that two first-layer
// submodules declaring the same .gitmodules path is a fatal
// PathCollisionError, not a silently overwritten Repository.
func TestDiscoverSubmoduleSubpathCollision(t *testing.T) {
	d := &fakeDriver{
		defaultBranch: map[string]string{
			"/workspace/sources/meta": "main",
		},
		submodules: map[string][]vcsdriver.Submodule{
			"/workspace/sources/meta": {
				{Path: "a", URL: "https://example.com/a.git"},
				{Path: "a", URL: "https://example.com/a-dup.git"},
			},
		},
	}
	o := New(d, "/workspace", report.New(time.Now()), nil, 0)

	_, err := o.Discover(context.Background(), "/meta")
	var collision *PathCollisionError
	if !errors.As(err, &collision) {
		t.Fatalf("Discover error = %v, want *PathCollisionError", err)
	}
}
