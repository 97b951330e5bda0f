package track

import (
	"context"
	"fmt"

	"github.com/roach88/stemtrack/internal/record"
	"github.com/roach88/stemtrack/internal/scanner"
)

// TrackShell saves a shell script and starts a run for it. Shell scripts
// cannot embed their identity, so the caller persists the returned run id
// (see package runfile) for Finish.
func (t *Tracker) TrackShell(ctx context.Context, path string) (*Result, error) {
	kind, err := scanner.KindOf(path)
	if err != nil {
		return nil, err
	}
	if kind != scanner.KindShellScript {
		return nil, fmt.Errorf("track: %s is not a shell script; only .sh files are tracked this way", path)
	}

	res, err := t.SaveTransform(ctx, SaveRequest{Path: path})
	if err != nil {
		return nil, err
	}
	run, err := t.store.CreateRun(ctx, t.runIDs.Generate(), res.Record.UID, t.user)
	if err != nil {
		return nil, err
	}
	t.logger.Info("started run", "run", run.ID, "uid", res.Record.UID)
	res.Run = &run
	return res, nil
}

// Finish marks a tracked run finished and attaches its environment.
func (t *Tracker) Finish(ctx context.Context, runID string) (record.Run, error) {
	if err := t.store.FinishRun(ctx, runID, nil); err != nil {
		return record.Run{}, err
	}
	if _, err := t.attachEnvironment(ctx, runID); err != nil {
		return record.Run{}, err
	}
	run, err := t.store.GetRun(ctx, runID)
	if err != nil {
		return record.Run{}, err
	}
	t.logger.Info("finished run", "run", run.ID, "uid", run.TransformUID)
	return run, nil
}
