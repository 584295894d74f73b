package gitcmd

import "strings"

// Failure classes named by SPEC_FULL §4.1 / §7. The VCS Driver surfaces one of
// these for every non-zero git invocation instead of a bare exit code.
type FailureClass int

const (
	// ClassExecError is the default: git ran and failed for a reason not
	// otherwise classified.
	ClassExecError FailureClass = iota
	// ClassNotARepo means the target directory is not a Git working copy.
	ClassNotARepo
	// ClassRefNotFound means a ref/branch/commit-ish did not resolve.
	ClassRefNotFound
	// ClassMergeConflict means a merge or read-tree left unresolved conflicts.
	ClassMergeConflict
)

// Classify inspects a GitError's stderr to assign it a FailureClass. This is
// the only place stderr text is pattern-matched; every caller above this
// layer dispatches on FailureClass, never on raw text.
func Classify(err *GitError) FailureClass {
	if err == nil {
		return ClassExecError
	}
	s := strings.ToLower(err.Stderr)
	switch {
	case strings.Contains(s, "not a git repository"):
		return ClassNotARepo
	case strings.Contains(s, "unknown revision"),
		strings.Contains(s, "bad revision"),
		strings.Contains(s, "ambiguous argument"),
		strings.Contains(s, "couldn't find remote ref"),
		strings.Contains(s, "did not match any"):
		return ClassRefNotFound
	case strings.Contains(s, "conflict"),
		strings.Contains(s, "automatic merge failed"),
		strings.Contains(s, "needs merge"):
		return ClassMergeConflict
	default:
		return ClassExecError
	}
}
