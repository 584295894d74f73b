// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

package cliutil

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/monomaker/monomaker/internal/report"
)

// WriteJSON writes v as JSON to w, pretty-printed when verbose is true.
func WriteJSON(w io.Writer, v any, verbose bool) error {
	encoder := json.NewEncoder(w)
	if verbose {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(v)
}

// WriteRunSummary prints a human-readable summary of a finished run to w:
// one line per PathOverride and Skip, per SPEC_FULL SUPPLEMENTED FEATURES
// #5. It never changes report.json's schema, only adds this convenience
// view for a terminal.
func WriteRunSummary(w io.Writer, doc report.Document) {
	fmt.Fprintf(w, "%smonomaker%s: %d repo(s), %d branch(es) resolved\n",
		ColorGreenBold, ColorReset, len(doc.Repos), len(doc.Resolutions))

	for _, outcome := range doc.Outcomes {
		switch outcome.Kind {
		case report.KindBranchSynthesized:
			s := outcome.Synthesized
			fmt.Fprintf(w, "  %s✓%s %s -> %s\n", ColorGreenBold, ColorReset, s.Branch, s.CommitSHA)
			for _, po := range s.PathOverrides {
				fmt.Fprintf(w, "      %spath override%s %s kept from %s\n", ColorYellowBold, ColorReset, po.Path, po.Winner)
			}
		case report.KindSkip:
			s := outcome.Skip
			fmt.Fprintf(w, "  %s-%s %s skipped (%s)\n", ColorYellowBold, ColorReset, s.Branch, s.Reason)
		case report.KindFailure:
			f := outcome.Failure
			fmt.Fprintf(w, "  %s✗%s %s: %s\n", ColorRedBold, ColorReset, f.Step, f.Detail)
		}
	}
}
