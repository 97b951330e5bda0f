// Package track runs the save flow end to end:
//
//	scan → hash → resolve → write record → run, report, environment
//
// Everything up to the record write only reads. If the write collides with
// another process (store.ErrDuplicateIdentity) the identity is resolved
// once more from scratch instead of retrying the same write.
package track

import (
	"context"
	"log/slog"

	"github.com/roach88/stemtrack/internal/hasher"
	"github.com/roach88/stemtrack/internal/record"
	"github.com/roach88/stemtrack/internal/report"
	"github.com/roach88/stemtrack/internal/resolver"
	"github.com/roach88/stemtrack/internal/store"
	"github.com/roach88/stemtrack/internal/uid"
)

// Store is the record store as used by the save flow. *store.Store
// implements it.
type Store interface {
	resolver.CandidateSource
	FindByHash(ctx context.Context, hash hasher.ContentHash, registry record.Registry) ([]record.Record, error)
	Get(ctx context.Context, u uid.UID) (record.Record, error)
	Content(ctx context.Context, u uid.UID) ([]byte, error)
	CreateVersion(ctx context.Context, nr store.NewRecord) (record.Record, error)
	AttachSource(ctx context.Context, u uid.UID, content []byte, replace bool) error
	UpdateKey(ctx context.Context, u uid.UID, key string) error
	UpdateDescription(ctx context.Context, u uid.UID, description string) error

	CreateRun(ctx context.Context, id string, u uid.UID, user string) (record.Run, error)
	GetRun(ctx context.Context, id string) (record.Run, error)
	FinishRun(ctx context.Context, id string, consecutive *bool) error
	LatestRun(ctx context.Context, u uid.UID) (*record.Run, error)
	LatestRunFor(ctx context.Context, u uid.UID, user string) (*record.Run, error)
	Runs(ctx context.Context, u uid.UID) ([]record.Run, error)
	AttachReport(ctx context.Context, runID string, rep store.NewRecord, replace bool) (record.Record, error)
	AttachEnvironment(ctx context.Context, runID string, env store.NewRecord) (record.Record, error)

	Features(ctx context.Context, u uid.UID) ([]record.Feature, error)
}

// Options configures a Tracker. Zero values get defaults.
type Options struct {
	// User owns created records and runs.
	User string
	// DevDir is the root keys are derived relative to.
	DevDir string
	// CacheDir holds run_env_pip_<run>.txt environment captures.
	CacheDir string

	Consent  resolver.ConsentPolicy
	Stems    uid.StemGenerator
	RunIDs   IDGenerator
	Renderer report.Renderer
	Logger   *slog.Logger
}

// Tracker saves, tracks and loads sources against one store.
type Tracker struct {
	store    Store
	resolver *resolver.Resolver
	consent  resolver.ConsentPolicy
	stems    uid.StemGenerator
	runIDs   IDGenerator
	renderer report.Renderer
	logger   *slog.Logger

	user     string
	devDir   string
	cacheDir string
}

// New creates a Tracker. Consent defaults to resolver.Never, stems to
// uid.RandomStems, run ids to UUIDv7 and the renderer to jupyter nbconvert.
func New(st Store, opts Options) *Tracker {
	if opts.Consent == nil {
		opts.Consent = resolver.Never
	}
	if opts.Stems == nil {
		opts.Stems = uid.RandomStems{}
	}
	if opts.RunIDs == nil {
		opts.RunIDs = UUIDv7Generator{}
	}
	if opts.Renderer == nil {
		opts.Renderer = report.NBConvert{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Tracker{
		store:    st,
		resolver: resolver.New(st, opts.Stems, opts.Consent),
		consent:  opts.Consent,
		stems:    opts.Stems,
		runIDs:   opts.RunIDs,
		renderer: opts.Renderer,
		logger:   opts.Logger,
		user:     opts.User,
		devDir:   opts.DevDir,
		cacheDir: opts.CacheDir,
	}
}

// User returns the user records are created for.
func (t *Tracker) User() string {
	return t.user
}

// newAttachmentUID mints the uid of a report or environment artifact.
func (t *Tracker) newAttachmentUID() (uid.UID, error) {
	stem, err := t.stems.NewStem()
	if err != nil {
		return "", err
	}
	return uid.Compose(stem, uid.InitialSuffix)
}
