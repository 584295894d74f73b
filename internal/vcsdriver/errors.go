// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

package vcsdriver

import (
	"errors"
	"fmt"

	"github.com/monomaker/monomaker/internal/gitcmd"
)

// NotARepoError means the target directory is not a Git working copy.
type NotARepoError struct {
	Path string
}

func (e *NotARepoError) Error() string {
	return fmt.Sprintf("not a git repository: %s", e.Path)
}

// RefNotFoundError means a ref, branch, or commit-ish did not resolve.
type RefNotFoundError struct {
	Repo string
	Ref  string
}

func (e *RefNotFoundError) Error() string {
	return fmt.Sprintf("ref not found in %s: %s", e.Repo, e.Ref)
}

// MergeConflictError means a merge or subtree import left unresolved
// conflicts in the working tree.
type MergeConflictError struct {
	Repo  string
	Files []string
}

func (e *MergeConflictError) Error() string {
	return fmt.Sprintf("merge conflict in %s (%d file(s))", e.Repo, len(e.Files))
}

// ExecError is the catch-all: git ran and returned a non-zero exit code for
// a reason none of the other classes recognize.
type ExecError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("git command failed: %s (exit %d): %s", e.Command, e.ExitCode, e.Stderr)
}

// classify turns a raw gitcmd error into one of the Driver's typed failures.
// repo and ref are used only to populate the typed error's fields; repo is
// the path the command ran in, ref is the ref argument being resolved (may
// be empty for commands that don't take one).
func classify(err error, repo, ref string) error {
	if err == nil {
		return nil
	}

	var gitErr *gitcmd.GitError
	if !errors.As(err, &gitErr) {
		return err
	}

	switch gitcmd.Classify(gitErr) {
	case gitcmd.ClassNotARepo:
		return &NotARepoError{Path: repo}
	case gitcmd.ClassRefNotFound:
		return &RefNotFoundError{Repo: repo, Ref: ref}
	case gitcmd.ClassMergeConflict:
		return &MergeConflictError{Repo: repo}
	default:
		return &ExecError{Command: gitErr.Command, ExitCode: gitErr.ExitCode, Stderr: gitErr.Stderr}
	}
}
