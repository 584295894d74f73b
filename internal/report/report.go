// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

// Package report implements the append-only Migration Report (C3 in
// SPEC_FULL.md): a structured, serializable log of discovered state,
// branch-resolution decisions, and per-step outcomes.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// RecordKind tags the variant of a Record, per spec §3's "tagged variants
// with exhaustive dispatch" design note (§9).
type RecordKind string

const (
	KindRepoDiscovered    RecordKind = "repo_discovered"
	KindWhitelistApplied  RecordKind = "whitelist_applied"
	KindBranchResolved    RecordKind = "branch_resolved"
	KindBranchSynthesized RecordKind = "branch_synthesized"
	KindSkip              RecordKind = "skip"
	KindFailure           RecordKind = "failure"
)

// Record is one append-only entry. Exactly one of the typed payload fields
// is populated, selected by Kind — Go has no sum types, so this is the
// idiomatic tagged-union shape (spec §9).
type Record struct {
	Kind RecordKind `json:"kind"`

	RepoDiscovered    *RepoDiscovered    `json:"repo_discovered,omitempty"`
	WhitelistApplied  *WhitelistApplied  `json:"whitelist_applied,omitempty"`
	BranchResolved    *BranchResolved    `json:"branch_resolved,omitempty"`
	BranchSynthesized *BranchSynthesized `json:"branch_synthesized,omitempty"`
	Skip              *Skip              `json:"skip,omitempty"`
	Failure           *Failure           `json:"failure,omitempty"`
}

// RepoDiscovered records one repository's discovered state.
type RepoDiscovered struct {
	Name             string                 `json:"name"`
	DefaultBranch    string                 `json:"default_branch"`
	Branches         []string               `json:"branches"`
	NestedSubmodules []NestedSubmoduleEntry `json:"nested_submodules,omitempty"`
}

// NestedSubmoduleEntry is the report's serialized form of a nested submodule.
type NestedSubmoduleEntry struct {
	Path string `json:"path"`
	URL  string `json:"url"`
	SHA  string `json:"sha"`
}

// WhitelistApplied records how a requested whitelist was expanded to the
// effective set (spec §3: effective = requested ∩ all_branches ∪ defaults).
type WhitelistApplied struct {
	Requested []string `json:"requested,omitempty"`
	Effective []string `json:"effective"`
}

// PlanEntry is the serialized form of resolver.PlanEntry (kept structurally
// identical so the report is a faithful record of the BranchPlan, spec §3).
type PlanEntry struct {
	Repo       string `json:"repo"`
	BranchUsed string `json:"branch_used"`
	FellBack   bool   `json:"fell_back"`
}

// BranchResolved records the plan computed for one feature branch.
type BranchResolved struct {
	Branch string      `json:"branch"`
	Plan   []PlanEntry `json:"plan"`
}

// BranchSynthesized records the monorepo commit produced for one branch.
type BranchSynthesized struct {
	Branch        string         `json:"branch"`
	CommitSHA     string         `json:"commit_sha"`
	PathOverrides []PathOverride `json:"path_overrides,omitempty"`
}

// PathOverride records a conflict between the meta-repo and a submodule at
// the same path, resolved in favor of the submodule (spec §4.5(c), S6).
type PathOverride struct {
	Path   string `json:"path"`
	Winner string `json:"winner"`
	Branch string `json:"branch"`
}

// Skip records a branch that was resolved-away without synthesis, e.g. an
// unknown whitelist entry (spec §4.4).
type Skip struct {
	Branch string `json:"branch"`
	Reason string `json:"reason"`
}

// Failure records a non-fatal synthesis or discovery error for one step.
type Failure struct {
	Step   string `json:"step"`
	Detail string `json:"detail"`
}

// Report is the Orchestrator-owned, append-only log. Appends are not
// thread-safe by contract (spec §4.3: "sequenced by the Orchestrator"), and
// the Orchestrator appends RepoDiscovered records only after its concurrent
// discovery workers (spec §5) have finished; a mutex guards every append
// and read anyway.
type Report struct {
	mu        sync.Mutex
	StartedAt time.Time
	records   []Record
}

// New creates a Report with StartedAt set to the given time. Callers supply
// the timestamp (rather than the Report calling time.Now() itself) so a run
// driven by SOURCE_DATE_EPOCH (spec §8 testable property 4) is reproducible.
func New(startedAt time.Time) *Report {
	return &Report{StartedAt: startedAt}
}

func (r *Report) append(rec Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
}

// AppendRepoDiscovered appends a RepoDiscovered record.
func (r *Report) AppendRepoDiscovered(d RepoDiscovered) {
	r.append(Record{Kind: KindRepoDiscovered, RepoDiscovered: &d})
}

// AppendWhitelistApplied appends a WhitelistApplied record.
func (r *Report) AppendWhitelistApplied(w WhitelistApplied) {
	r.append(Record{Kind: KindWhitelistApplied, WhitelistApplied: &w})
}

// AppendBranchResolved appends a BranchResolved record. Per spec §3's
// invariant, this must precede the branch's BranchSynthesized or Failure.
func (r *Report) AppendBranchResolved(b BranchResolved) {
	r.append(Record{Kind: KindBranchResolved, BranchResolved: &b})
}

// AppendBranchSynthesized appends a BranchSynthesized record.
func (r *Report) AppendBranchSynthesized(b BranchSynthesized) {
	r.append(Record{Kind: KindBranchSynthesized, BranchSynthesized: &b})
}

// AppendSkip appends a Skip record.
func (r *Report) AppendSkip(s Skip) {
	r.append(Record{Kind: KindSkip, Skip: &s})
}

// AppendFailure appends a Failure record.
func (r *Report) AppendFailure(f Failure) {
	r.append(Record{Kind: KindFailure, Failure: &f})
}

// Records returns a defensive copy of the records appended so far, in
// creation order (spec §3: "record order is creation order").
func (r *Report) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}

// Document is the fixed-field-order JSON shape of spec §6: "Object with
// fields { version, started_at, finished_at, repos, resolutions, outcomes }".
type Document struct {
	Version     int              `json:"version"`
	StartedAt   time.Time        `json:"started_at"`
	FinishedAt  time.Time        `json:"finished_at"`
	Repos       []RepoDiscovered `json:"repos"`
	Resolutions []BranchResolved `json:"resolutions"`
	Outcomes    []OutcomeEntry   `json:"outcomes"`
}

// OutcomeEntry is a tagged union over the terminal outcome of one branch:
// exactly one of Synthesized, Skip, Failure is non-nil.
type OutcomeEntry struct {
	Kind        RecordKind         `json:"kind"`
	Synthesized *BranchSynthesized `json:"synthesized,omitempty"`
	Skip        *Skip              `json:"skip,omitempty"`
	Failure     *Failure           `json:"failure,omitempty"`
}

// ToDocument projects the append-only record stream into the fixed-shape
// Document spec §6 describes for on-disk serialization. finishedAt is
// supplied by the caller for the same reproducibility reason as New.
func (r *Report) ToDocument(finishedAt time.Time) Document {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc := Document{
		Version:    1,
		StartedAt:  r.StartedAt,
		FinishedAt: finishedAt,
	}
	for _, rec := range r.records {
		switch rec.Kind {
		case KindRepoDiscovered:
			doc.Repos = append(doc.Repos, *rec.RepoDiscovered)
		case KindWhitelistApplied:
			// Not separately surfaced in Document's fixed shape; the effective
			// set it computed is implied by the union of resolutions below.
		case KindBranchResolved:
			doc.Resolutions = append(doc.Resolutions, *rec.BranchResolved)
		case KindBranchSynthesized:
			doc.Outcomes = append(doc.Outcomes, OutcomeEntry{Kind: rec.Kind, Synthesized: rec.BranchSynthesized})
		case KindSkip:
			doc.Outcomes = append(doc.Outcomes, OutcomeEntry{Kind: rec.Kind, Skip: rec.Skip})
		case KindFailure:
			doc.Outcomes = append(doc.Outcomes, OutcomeEntry{Kind: rec.Kind, Failure: rec.Failure})
		}
	}
	return doc
}

// WriteFile serializes the report to path as indented JSON. A partial
// report (from a run that failed midway) must still deserialize cleanly
// (spec §4.3) — this is guaranteed here since Document has no required
// invariant beyond well-formed JSON.
func (r *Report) WriteFile(path string, finishedAt time.Time) error {
	doc := r.ToDocument(finishedAt)
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal migration report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write migration report: %w", err)
	}
	return nil
}

// ReadFile deserializes a Document previously written by WriteFile.
func ReadFile(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("read migration report: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("unmarshal migration report: %w", err)
	}
	return doc, nil
}
