package track

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/stemtrack/internal/hasher"
	"github.com/roach88/stemtrack/internal/record"
	"github.com/roach88/stemtrack/internal/report"
	"github.com/roach88/stemtrack/internal/resolver"
	"github.com/roach88/stemtrack/internal/scanner"
	"github.com/roach88/stemtrack/internal/store"
)

// SaveRequest describes one save of a source file.
type SaveRequest struct {
	Path string
	// Stem continues an existing family when the source embeds no identity.
	Stem string
	// CreateStem allows Stem to name a family with no versions yet.
	CreateStem bool
	// Description overrides the title found in the source.
	Description string
}

// Result is the outcome of a save.
type Result struct {
	Decision *resolver.Decision
	Record   record.Record
	// Run is the run the report and environment were attached to, if any.
	Run          *record.Run
	Report       *record.Record
	ReportAction report.Action
	Environment  *record.Record
}

// Plan resolves the identity of a source file without writing anything.
// Notebooks are not rendered.
func (t *Tracker) Plan(ctx context.Context, req SaveRequest) (*resolver.Decision, error) {
	_, in, _, _, err := t.prepare(ctx, req, nil)
	if err != nil {
		return nil, err
	}
	return t.resolver.Resolve(ctx, in)
}

// SaveTransform saves a script or notebook as a transform version and,
// for notebooks, attaches the rendered report to the user's latest run.
func (t *Tracker) SaveTransform(ctx context.Context, req SaveRequest) (*Result, error) {
	sc, in, rendered, content, err := t.prepare(ctx, req, t.renderer)
	if err != nil {
		return nil, err
	}

	if rendered.Consecutive != nil && !*rendered.Consecutive {
		cells := make([]string, len(rendered.Violations))
		for i, v := range rendered.Violations {
			cells[i] = v.String()
		}
		p := resolver.Prompt{
			Kind:    resolver.PromptNonConsecutive,
			Message: "notebook cells were not executed in order; save anyway",
			Current: strings.Join(cells, "; "),
		}
		if !t.consent.Confirm(p) {
			return nil, resolver.Declined(p)
		}
	}

	description := req.Description
	if description == "" {
		description = sc.Title(content)
	}
	d, rec, err := t.resolveAndApply(ctx, in, rendered.Source, description, req.Description != "")
	if err != nil {
		return nil, err
	}
	t.logger.Info("saved transform",
		"uid", rec.UID, "stem", rec.Stem(), "outcome", d.Outcome, "key", rec.Key, "version", rec.VersionLabel)

	res := &Result{Decision: d, Record: rec}
	if err := t.checkOwnership(ctx, rec); err != nil {
		return nil, err
	}
	if sc.Kind() == scanner.KindNotebook {
		if err := t.attachNotebookRun(ctx, rendered, res); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// prepare scans and hashes a source file. A nil renderer only computes the
// source attachment.
func (t *Tracker) prepare(ctx context.Context, req SaveRequest, renderer report.Renderer) (scanner.Scanner, resolver.Input, *report.Rendered, string, error) {
	sc, scanned, content, err := scanner.ScanFile(req.Path)
	if err != nil {
		return nil, resolver.Input{}, nil, "", err
	}
	var rendered *report.Rendered
	if renderer == nil {
		var source []byte
		source, err = report.Source(req.Path, []byte(content))
		rendered = &report.Rendered{Source: source}
	} else {
		rendered, err = report.Build(ctx, req.Path, []byte(content), renderer)
	}
	if err != nil {
		return nil, resolver.Input{}, nil, "", err
	}
	key, err := DeriveKey(req.Path, t.devDir)
	if err != nil {
		return nil, resolver.Input{}, nil, "", err
	}
	in := resolver.Input{
		Scanned:      scanned,
		Kind:         sc.Kind(),
		Key:          key,
		ContentHash:  hasher.HashBytes(rendered.Source),
		ExplicitStem: req.Stem,
		CreateStem:   req.CreateStem,
	}
	return sc, in, rendered, content, nil
}

// resolveAndApply resolves and writes. A write that collides with another
// process is resolved again once; only a reuse of what the other process
// wrote is accepted, anything else is a conflict.
func (t *Tracker) resolveAndApply(ctx context.Context, in resolver.Input, source []byte, description string, explicit bool) (*resolver.Decision, record.Record, error) {
	d, err := t.resolver.Resolve(ctx, in)
	if err != nil {
		return nil, record.Record{}, err
	}
	rec, err := t.apply(ctx, d, in, source, description, explicit)
	if !errors.Is(err, store.ErrDuplicateIdentity) {
		return d, rec, err
	}

	t.logger.Warn("identity taken concurrently, resolving again", "uid", d.UID, "error", err)
	retry, rerr := t.resolver.Resolve(ctx, in)
	if rerr != nil {
		return nil, record.Record{}, rerr
	}
	if retry.Outcome != resolver.ReuseExisting {
		return nil, record.Record{}, &resolver.Error{
			Code:    resolver.CodeConflict,
			Message: fmt.Sprintf("%s was created by another process while saving; save again to continue", d.UID),
			Err:     err,
		}
	}
	rec, err = t.apply(ctx, retry, in, source, description, explicit)
	return retry, rec, err
}

func (t *Tracker) apply(ctx context.Context, d *resolver.Decision, in resolver.Input, source []byte, description string, explicit bool) (record.Record, error) {
	registry := in.Registry
	if registry == "" {
		registry = record.Transform
	}
	if d.Outcome != resolver.ReuseExisting {
		nr := store.NewRecord{
			UID:          d.UID,
			Registry:     registry,
			Key:          in.Key,
			Description:  description,
			VersionLabel: d.Label,
			Revises:      d.Revises,
			CreatedBy:    t.user,
			Content:      source,
		}
		if registry == record.Transform {
			nr.Kind = in.Kind.String()
		}
		return t.store.CreateVersion(ctx, nr)
	}

	rec := *d.Existing
	mutated := false
	if action := report.SourceAction(d); action != report.Unchanged {
		t.logger.Debug("attaching source", "uid", rec.UID, "action", action)
		if err := t.store.AttachSource(ctx, rec.UID, source, action == report.Replace); err != nil {
			return record.Record{}, err
		}
		mutated = true
	}
	if d.UpdateKey {
		t.logger.Info("updating key", "uid", rec.UID, "from", rec.Key, "to", in.Key)
		if err := t.store.UpdateKey(ctx, rec.UID, in.Key); err != nil {
			return record.Record{}, err
		}
		mutated = true
	}
	if description != "" && description != rec.Description && (explicit || rec.Description == "") {
		if err := t.store.UpdateDescription(ctx, rec.UID, description); err != nil {
			return record.Record{}, err
		}
		mutated = true
	}
	if !mutated {
		return rec, nil
	}
	return t.store.Get(ctx, rec.UID)
}

// checkOwnership asks before attaching files to a transform whose latest
// run belongs to somebody else.
func (t *Tracker) checkOwnership(ctx context.Context, rec record.Record) error {
	latest, err := t.store.LatestRun(ctx, rec.UID)
	if err != nil {
		return err
	}
	if latest == nil || latest.CreatedBy == t.user {
		return nil
	}
	p := resolver.Prompt{
		Kind:     resolver.PromptForeignRun,
		Message:  "the latest run of this transform was created by another user; files will be saved under your user",
		Current:  fmt.Sprintf("run %s by %s", latest.ID, latest.CreatedBy),
		Proposed: t.user,
	}
	if !t.consent.Confirm(p) {
		return resolver.Declined(p)
	}
	return nil
}

// attachNotebookRun attaches the report and environment of a notebook to
// the user's latest run, starting one if there is none.
func (t *Tracker) attachNotebookRun(ctx context.Context, rendered *report.Rendered, res *Result) error {
	run, err := t.store.LatestRunFor(ctx, res.Record.UID, t.user)
	if err != nil {
		return err
	}
	if run == nil {
		created, err := t.store.CreateRun(ctx, t.runIDs.Generate(), res.Record.UID, t.user)
		if err != nil {
			return err
		}
		t.logger.Debug("started run", "run", created.ID, "uid", res.Record.UID)
		run = &created
	}

	var current *record.Record
	if run.ReportUID != "" {
		rep, err := t.store.Get(ctx, run.ReportUID)
		if err != nil {
			return err
		}
		current = &rep
	}
	res.ReportAction = report.ReportAction(current, rendered.Report, t.consent)
	res.Report = current
	switch res.ReportAction {
	case report.New, report.Replace:
		u, err := t.newAttachmentUID()
		if err != nil {
			return fmt.Errorf("mint report uid: %w", err)
		}
		rep, err := t.store.AttachReport(ctx, run.ID, store.NewRecord{
			UID:         u,
			Registry:    record.Artifact,
			Kind:        "report",
			Description: fmt.Sprintf("Report of %s (%s)", res.Record.UID, rendered.ReportName),
			CreatedBy:   t.user,
			Content:     rendered.Report,
		}, res.ReportAction == report.Replace)
		if err != nil {
			return err
		}
		res.Report = &rep
	case report.Abort:
		t.logger.Warn("kept existing report", "run", run.ID, "report", run.ReportUID)
	}

	env, err := t.attachEnvironment(ctx, run.ID)
	if err != nil {
		return err
	}
	res.Environment = env

	if err := t.store.FinishRun(ctx, run.ID, rendered.Consecutive); err != nil {
		return err
	}
	finished, err := t.store.GetRun(ctx, run.ID)
	if err != nil {
		return err
	}
	res.Run = &finished
	return nil
}

// EnvironmentFile returns where the environment of a run is captured.
func EnvironmentFile(dir, runID string) string {
	return filepath.Join(dir, "run_env_pip_"+runID+".txt")
}

// attachEnvironment attaches the captured environment of a run if one
// exists in the cache directory.
func (t *Tracker) attachEnvironment(ctx context.Context, runID string) (*record.Record, error) {
	if t.cacheDir == "" {
		return nil, nil
	}
	path := EnvironmentFile(t.cacheDir, runID)
	content, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	u, err := t.newAttachmentUID()
	if err != nil {
		return nil, fmt.Errorf("mint environment uid: %w", err)
	}
	env, err := t.store.AttachEnvironment(ctx, runID, store.NewRecord{
		UID:         u,
		Registry:    record.Artifact,
		Kind:        "environment",
		Key:         "run_env_pip.txt",
		Description: "requirements.txt",
		CreatedBy:   t.user,
		Content:     content,
	})
	if err != nil {
		return nil, err
	}
	t.logger.Debug("attached environment", "run", runID, "uid", env.UID)
	return &env, nil
}
