package track

import (
	"context"

	"github.com/roach88/stemtrack/internal/locator"
	"github.com/roach88/stemtrack/internal/record"
)

// Description is everything known about one record.
type Description struct {
	Record record.Record `json:"record"`
	// Family lists every version sharing the stem, newest first.
	Family   []record.Record  `json:"family"`
	Runs     []record.Run     `json:"runs,omitempty"`
	Features []record.Feature `json:"features,omitempty"`
}

// Describe locates ref and collects its version family, runs and features.
func (t *Tracker) Describe(ctx context.Context, ref locator.Ref) (*Description, error) {
	rec, err := locator.New(t.store).Locate(ctx, ref)
	if err != nil {
		return nil, err
	}
	family, err := t.store.FindByUidPrefix(ctx, rec.Stem(), rec.Registry)
	if err != nil {
		return nil, err
	}
	runs, err := t.store.Runs(ctx, rec.UID)
	if err != nil {
		return nil, err
	}
	features, err := t.store.Features(ctx, rec.UID)
	if err != nil {
		return nil, err
	}
	return &Description{Record: rec, Family: family, Runs: runs, Features: features}, nil
}
