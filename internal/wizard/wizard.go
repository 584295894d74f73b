// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

// Package wizard implements the interactive whitelist-builder of SPEC_FULL's
// SUPPLEMENTED FEATURES #3: run discovery only, then let the operator pick
// the branches to carry into synthesis instead of hand-writing a whitelist
// JSON file.
package wizard

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/monomaker/monomaker/internal/repomodel"
)

const (
	iconRocket  = "🚀"
	iconSuccess = "✓"
	iconWarning = "⚠"
	iconInfo    = "ℹ"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62")).MarginBottom(1)
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

// Printer writes the wizard's narration to an io.Writer, mirroring the
// donor's wizard.Printer minus the steps this wizard has no use for.
type Printer struct {
	Out io.Writer
}

// NewPrinter builds a Printer writing to stdout.
func NewPrinter() *Printer { return &Printer{Out: os.Stdout} }

func (p *Printer) header(title string) {
	fmt.Fprintln(p.Out)
	fmt.Fprintln(p.Out, titleStyle.Render(iconRocket+" "+title))
	fmt.Fprintln(p.Out)
}

func (p *Printer) info(msg string)    { fmt.Fprintln(p.Out, dimStyle.Render(iconInfo+" "+msg)) }
func (p *Printer) success(msg string) { fmt.Fprintln(p.Out, okStyle.Render(iconSuccess+" "+msg)) }
func (p *Printer) warn(msg string)    { fmt.Fprintln(p.Out, warnStyle.Render(iconWarning+" "+msg)) }

// Discoverer is the narrow collaborator the wizard runs to learn what
// branches exist before asking the operator which ones to keep. It is
// satisfied directly by *orchestrator.Orchestrator.
type Discoverer interface {
	Discover(ctx context.Context, metaRepoPath string) ([]*repomodel.Repository, error)
}

// Wizard drives the interactive whitelist-building flow.
type Wizard struct {
	printer  *Printer
	discover Discoverer
}

// New builds a Wizard backed by discover for its discovery phase.
func New(discover Discoverer) *Wizard {
	return &Wizard{printer: NewPrinter(), discover: discover}
}

// Run discovers metaRepoPath's repositories, asks the operator to select
// which branches to keep via a multi-select form, and writes the selection
// as a whitelist JSON array to outputPath.
func (w *Wizard) Run(ctx context.Context, metaRepoPath, outputPath string) error {
	w.printer.header("Whitelist Wizard")
	w.printer.info("Discovering repositories and their branches...")

	repos, err := w.discover.Discover(ctx, metaRepoPath)
	if err != nil {
		return fmt.Errorf("wizard: discover %s: %w", metaRepoPath, err)
	}
	if len(repos) == 0 {
		w.printer.warn("No repositories discovered")
		return nil
	}
	w.printer.success(fmt.Sprintf("Found %d repositories", len(repos)))

	union := unionBranches(repos)
	if len(union) == 0 {
		w.printer.warn("No branches found across any repository")
		return nil
	}

	selected, err := w.selectBranches(union)
	if err != nil {
		return fmt.Errorf("wizard: selection form: %w", err)
	}
	if len(selected) == 0 {
		w.printer.warn("No branches selected, nothing written")
		return nil
	}

	if err := writeWhitelist(outputPath, selected); err != nil {
		return fmt.Errorf("wizard: write whitelist: %w", err)
	}
	w.printer.success(fmt.Sprintf("Wrote %d branch(es) to %s", len(selected), outputPath))
	return nil
}

func (w *Wizard) selectBranches(branches []string) ([]string, error) {
	options := make([]huh.Option[string], 0, len(branches))
	for _, b := range branches {
		options = append(options, huh.NewOption(b, b))
	}

	var selected []string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title(fmt.Sprintf("Select branches to synthesize (%d found)", len(branches))).
				Description("Use space to toggle, enter to confirm").
				Options(options...).
				Value(&selected),
		),
	).WithTheme(huh.ThemeCharm())

	if err := form.Run(); err != nil {
		return nil, err
	}
	return selected, nil
}

// unionBranches returns the sorted union of every repository's branch names
// (spec §4.4 step 1: "the union of branch names across repo and every
// first-layer submodule").
func unionBranches(repos []*repomodel.Repository) []string {
	seen := make(map[string]bool)
	for _, r := range repos {
		for name := range r.Branches {
			seen[name] = true
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func writeWhitelist(path string, branches []string) error {
	data, err := json.MarshalIndent(branches, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
