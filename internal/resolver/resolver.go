// Package resolver decides the identity of a source file being saved.
//
// Given what the scanner found, the content hash and the records already
// in the store, Resolve picks exactly one outcome:
//
//   - REUSE_EXISTING: an existing version already holds this identity
//   - CREATE_VERSION: a new version in a known family
//   - CREATE_NEW_FAMILY: a new version in a freshly minted family
//
// or fails with an *Error. Rules, evaluated in order:
//
//  1. A full uid in the source names that exact version.
//  2. A bare stem (or legacy stem/version pair) names a family; the latest
//     version is compared by content hash.
//  3. Without any embedded identity, records with the same key and kind
//     are matched; more than one family is a conflict.
//  4. An explicit stem replaces key matching but never rules 1-2.
//
// The resolver only reads from the store. Consent questions go through the
// injected ConsentPolicy, so a Resolver never touches a terminal.
package resolver

import (
	"context"
	"fmt"

	"github.com/roach88/stemtrack/internal/hasher"
	"github.com/roach88/stemtrack/internal/record"
	"github.com/roach88/stemtrack/internal/scanner"
	"github.com/roach88/stemtrack/internal/uid"
)

// CandidateSource is the read side of the record store. Both lookups
// return records ordered by creation time, newest first.
type CandidateSource interface {
	FindByUidPrefix(ctx context.Context, prefix string, registry record.Registry) ([]record.Record, error)
	FindByKey(ctx context.Context, key string, registry record.Registry) ([]record.Record, error)
}

// Outcome is the terminal state of one resolution.
type Outcome string

const (
	ReuseExisting   Outcome = "REUSE_EXISTING"
	CreateVersion   Outcome = "CREATE_VERSION"
	CreateNewFamily Outcome = "CREATE_NEW_FAMILY"
)

// Input is everything the resolver needs about the file being saved.
type Input struct {
	Scanned     scanner.Result
	Kind        scanner.Kind
	Key         string
	ContentHash hasher.ContentHash

	// Registry defaults to record.Transform. Artifacts carry no source kind,
	// so key matching ignores Kind for them.
	Registry record.Registry

	// ExplicitStem is a user supplied family (--stem).
	ExplicitStem string
	// CreateStem allows starting the explicit family when it has no
	// versions yet.
	CreateStem bool
}

// Decision is the resolved identity plus the writes it requires.
type Decision struct {
	Outcome Outcome
	UID     uid.UID
	Label   string
	// Revises is the predecessor of a new version; empty for the first
	// version of a family.
	Revises uid.UID
	// Existing is the reused record for ReuseExisting.
	Existing *record.Record

	// AttachSource is set when the source bytes must be written.
	AttachSource bool
	// ReplaceSource is set when the write overwrites a previously attached
	// source, which only happens with consent.
	ReplaceSource bool
	// RefreshAttachments is set for notebooks, whose report is rendered
	// again on every save even when the source is unchanged.
	RefreshAttachments bool
	// UpdateKey is set when a reused record was found under another key.
	UpdateKey bool
}

func (in Input) registry() record.Registry {
	if in.Registry == "" {
		return record.Transform
	}
	return in.Registry
}

// Stem returns the version family of the decision.
func (d *Decision) Stem() string {
	return d.UID.Stem()
}

// Mutates reports whether applying the decision changes the record set or
// an existing record.
func (d *Decision) Mutates() bool {
	return d.Outcome != ReuseExisting || d.AttachSource || d.UpdateKey
}

// Resolver evaluates the resolution rules.
//
// Thread-safety: a Resolver holds no mutable state; it is safe for
// concurrent use when its collaborators are.
type Resolver struct {
	source  CandidateSource
	stems   uid.StemGenerator
	consent ConsentPolicy
}

// New creates a resolver. A nil stems defaults to uid.RandomStems and a
// nil consent to Never.
func New(source CandidateSource, stems uid.StemGenerator, consent ConsentPolicy) *Resolver {
	if stems == nil {
		stems = uid.RandomStems{}
	}
	if consent == nil {
		consent = Never
	}
	return &Resolver{source: source, stems: stems, consent: consent}
}

// Consent returns the policy the resolver asks.
func (r *Resolver) Consent() ConsentPolicy {
	return r.consent
}

// Resolve runs the read phase and returns the decision. It never writes.
// Calling it again is always safe; after a failed write it must be called
// again because the candidate set has changed.
func (r *Resolver) Resolve(ctx context.Context, in Input) (*Decision, error) {
	if in.ExplicitStem != "" && !uid.IsStem(in.ExplicitStem) {
		return nil, malformed(in.ExplicitStem, uid.ErrMalformed)
	}

	switch in.Scanned.Found {
	case scanner.FoundMalformed:
		return nil, malformed(in.Scanned.Token, nil)
	case scanner.FoundUID:
		if err := checkExplicit(in, in.Scanned.Stem); err != nil {
			return nil, err
		}
		return r.resolveExact(ctx, in, in.Scanned.UID)
	case scanner.FoundStem, scanner.FoundLegacy:
		if err := checkExplicit(in, in.Scanned.Stem); err != nil {
			return nil, err
		}
		return r.resolveFamily(ctx, in, in.Scanned.Stem, in.Scanned.Label, true)
	}

	if in.ExplicitStem != "" {
		return r.resolveFamily(ctx, in, in.ExplicitStem, "", in.CreateStem)
	}
	return r.resolveByKey(ctx, in)
}

func checkExplicit(in Input, stem string) error {
	if in.ExplicitStem == "" || in.ExplicitStem == stem {
		return nil
	}
	return conflict(fmt.Sprintf("source is tracked under stem %s but stem %s was requested", stem, in.ExplicitStem))
}

// family returns all versions of stem, newest first.
func (r *Resolver) family(ctx context.Context, in Input, stem string) ([]record.Record, error) {
	recs, err := r.source.FindByUidPrefix(ctx, stem, in.registry())
	if err != nil {
		return nil, fmt.Errorf("find family %s: %w", stem, err)
	}
	return recs, nil
}

// resolveExact applies rule 1.
func (r *Resolver) resolveExact(ctx context.Context, in Input, u uid.UID) (*Decision, error) {
	fam, err := r.family(ctx, in, u.Stem())
	if err != nil {
		return nil, err
	}
	for i := range fam {
		if fam[i].UID == u {
			return r.reuse(in, fam[i])
		}
	}

	d := &Decision{
		Outcome:      CreateVersion,
		UID:          u,
		Label:        inferLabel(u, fam),
		AttachSource: true,
	}
	if len(fam) > 0 {
		d.Revises = fam[0].UID
	}
	return d, nil
}

// resolveFamily applies rule 2 (and rule 4 for an explicit stem).
func (r *Resolver) resolveFamily(ctx context.Context, in Input, stem, label string, create bool) (*Decision, error) {
	fam, err := r.family(ctx, in, stem)
	if err != nil {
		return nil, err
	}
	if len(fam) == 0 {
		if !create {
			return nil, &Error{
				Code:    CodeStemNotFound,
				Message: fmt.Sprintf("no version exists under stem %s", stem),
			}
		}
		return firstVersion(CreateVersion, stem, label)
	}
	return r.fromLatest(in, fam)
}

// resolveByKey applies rule 3.
func (r *Resolver) resolveByKey(ctx context.Context, in Input) (*Decision, error) {
	var matches []record.Record
	if in.Key != "" {
		reg := in.registry()
		recs, err := r.source.FindByKey(ctx, in.Key, reg)
		if err != nil {
			return nil, fmt.Errorf("find key %s: %w", in.Key, err)
		}
		for _, rec := range recs {
			if reg != record.Transform || rec.Kind == in.Kind.String() {
				matches = append(matches, rec)
			}
		}
	}

	families := groupByStem(matches)
	switch len(families) {
	case 0:
		stem, err := r.stems.NewStem()
		if err != nil {
			return nil, fmt.Errorf("mint stem: %w", err)
		}
		return firstVersion(CreateNewFamily, stem, "")
	case 1:
		return r.fromLatest(in, families[0])
	default:
		latest := make([]record.Record, len(families))
		for i, fam := range families {
			latest[i] = fam[0]
		}
		return nil, conflict(
			fmt.Sprintf("key %q matches %d unrelated transforms; pass the stem of the one to continue", in.Key, len(families)),
			latest...)
	}
}

// fromLatest compares against the newest version of a non-empty family.
func (r *Resolver) fromLatest(in Input, fam []record.Record) (*Decision, error) {
	latest := fam[0]
	if latest.ContentHash == "" || latest.ContentHash == in.ContentHash {
		return r.reuse(in, latest)
	}

	next, err := uid.NextNumeric(latest.VersionLabel)
	if err != nil {
		return nil, &Error{
			Code: CodeConflict,
			Message: fmt.Sprintf("content differs from latest version %s whose version %q is not numeric; save with an explicit version",
				latest.UID, latest.VersionLabel),
			Candidates: []record.Record{latest},
			Err:        err,
		}
	}
	proposed, err := uid.ComposeLabel(latest.Stem(), next)
	if err != nil {
		return nil, malformed(latest.Stem(), err)
	}
	for _, rec := range fam {
		if rec.UID == proposed {
			return nil, conflict(fmt.Sprintf("version %q of stem %s already exists but is not the latest", next, latest.Stem()), latest, rec)
		}
	}

	p := Prompt{
		Kind:     PromptVersionBump,
		Message:  "source changed; create a new version",
		Current:  fmt.Sprintf("%s version %s", latest.UID, latest.VersionLabel),
		Proposed: fmt.Sprintf("%s version %s", proposed, next),
	}
	if !r.consent.Confirm(p) {
		return nil, aborted(p)
	}
	return &Decision{
		Outcome:      CreateVersion,
		UID:          proposed,
		Label:        next,
		Revises:      latest.UID,
		AttachSource: true,
	}, nil
}

func (r *Resolver) reuse(in Input, existing record.Record) (*Decision, error) {
	d := &Decision{
		Outcome:            ReuseExisting,
		UID:                existing.UID,
		Label:              existing.VersionLabel,
		Existing:           &existing,
		RefreshAttachments: in.Kind == scanner.KindNotebook,
		UpdateKey:          in.Key != "" && existing.Key != in.Key,
	}
	switch existing.ContentHash {
	case in.ContentHash:
	case "":
		d.AttachSource = true
	default:
		p := Prompt{
			Kind:    PromptReplaceSource,
			Message: "source differs from the source saved for this version; overwrite it",
			Current: string(existing.UID),
		}
		if !r.consent.Confirm(p) {
			return nil, aborted(p)
		}
		d.AttachSource = true
		d.ReplaceSource = true
	}
	return d, nil
}

func firstVersion(outcome Outcome, stem, label string) (*Decision, error) {
	u, err := uid.Compose(stem, uid.InitialSuffix)
	if err != nil {
		return nil, malformed(stem, err)
	}
	if label == "" {
		label = uid.InitialLabel
	}
	return &Decision{Outcome: outcome, UID: u, Label: label, AttachSource: true}, nil
}

// inferLabel recovers the version label of a pre-assigned uid. Suffixes
// are one-way, so only the first version and the numeric successor of the
// latest version can be recognized.
func inferLabel(u uid.UID, fam []record.Record) string {
	if u.Suffix() == uid.InitialSuffix {
		return uid.InitialLabel
	}
	if len(fam) > 0 {
		if next, err := uid.NextNumeric(fam[0].VersionLabel); err == nil && uid.DecodeSuffix(next) == u.Suffix() {
			return next
		}
	}
	return ""
}

// groupByStem splits records into version families, keeping the input
// order inside each family and ordering families by first appearance.
func groupByStem(recs []record.Record) [][]record.Record {
	var out [][]record.Record
	index := map[string]int{}
	for _, rec := range recs {
		i, ok := index[rec.Stem()]
		if !ok {
			i = len(out)
			index[rec.Stem()] = i
			out = append(out, nil)
		}
		out[i] = append(out[i], rec)
	}
	return out
}
