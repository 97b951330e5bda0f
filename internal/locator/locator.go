// Package locator resolves user references to exactly one stored record.
//
// A reference is a canonical URL, a uid or uid prefix, or a key. When
// several records match, the most recently created one wins. If the two
// newest candidates were created at the same instant there is no defined
// winner and the lookup fails as ambiguous instead of guessing.
package locator

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/roach88/stemtrack/internal/record"
	"github.com/roach88/stemtrack/internal/uid"
)

// Finder is the read side of the record store. Results are ordered by
// creation time, newest first.
type Finder interface {
	FindByUidPrefix(ctx context.Context, prefix string, registry record.Registry) ([]record.Record, error)
	FindByKey(ctx context.Context, key string, registry record.Registry) ([]record.Record, error)
}

// Ref is a parsed reference. Exactly one of UIDPrefix and Key is set.
type Ref struct {
	Registry  record.Registry
	UIDPrefix string
	Key       string
	// Instance is the account/name slug of a canonical URL.
	Instance string
	// WithContent skips records that have no content attached.
	WithContent bool
}

func (r Ref) String() string {
	if r.UIDPrefix != "" {
		return fmt.Sprintf("%s uid=%s", r.Registry, r.UIDPrefix)
	}
	return fmt.Sprintf("%s key=%s", r.Registry, r.Key)
}

// DecomposeURL splits a canonical URL of the form
// https://host/{account}/{instance}/{registry}/{uid} into its parts.
// The registry segment may appear anywhere in the path; the uid is the
// segment right after it. When several segments name a registry, the last
// one followed by a uid is used.
func DecomposeURL(raw string) (instance string, registry record.Registry, u string, err error) {
	unrecognized := func(reason string) error {
		return &Error{Code: CodeUnrecognizedURL, Message: fmt.Sprintf("%s: %s", raw, reason)}
	}

	parsed, perr := url.Parse(raw)
	if perr != nil {
		return "", "", "", unrecognized(perr.Error())
	}
	var segments []string
	for _, s := range strings.Split(parsed.Path, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}

	// Account and instance names may themselves be registry names, so the
	// last registry segment followed by a uid wins.
	var rejected error
	for i := len(segments) - 1; i >= 0; i-- {
		reg := record.Registry(segments[i])
		if !reg.Valid() {
			continue
		}
		if i+1 >= len(segments) {
			if rejected == nil {
				rejected = unrecognized("no uid after " + segments[i])
			}
			continue
		}
		if !uid.IsPrefix(segments[i+1]) {
			if rejected == nil {
				rejected = unrecognized(fmt.Sprintf("%q is not a uid", segments[i+1]))
			}
			continue
		}
		if i >= 2 {
			instance = segments[0] + "/" + segments[1]
		}
		return instance, reg, segments[i+1], nil
	}
	if rejected != nil {
		return "", "", "", rejected
	}
	return "", "", "", unrecognized("expected one of transform, artifact or collection in the path")
}

// ParseURL converts a canonical URL into a Ref.
func ParseURL(raw string) (Ref, error) {
	instance, reg, u, err := DecomposeURL(raw)
	if err != nil {
		return Ref{}, err
	}
	return Ref{Registry: reg, UIDPrefix: u, Instance: instance}, nil
}

// IsURL reports whether s looks like a URL rather than a registry name,
// uid or key.
func IsURL(s string) bool {
	return strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "http://")
}

// Locator finds records through a Finder.
type Locator struct {
	finder Finder
}

// New creates a Locator.
func New(finder Finder) *Locator {
	return &Locator{finder: finder}
}

// Locate returns the single record ref names.
func (l *Locator) Locate(ctx context.Context, ref Ref) (record.Record, error) {
	var (
		recs []record.Record
		err  error
		code = CodeAmbiguousPrefix
	)
	switch {
	case ref.UIDPrefix != "":
		if !uid.IsPrefix(ref.UIDPrefix) {
			return record.Record{}, &Error{Code: CodeNotFound, Message: fmt.Sprintf("%q is not a uid prefix", ref.UIDPrefix)}
		}
		recs, err = l.finder.FindByUidPrefix(ctx, ref.UIDPrefix, ref.Registry)
	case ref.Key != "":
		code = CodeAmbiguousKey
		recs, err = l.finder.FindByKey(ctx, ref.Key, ref.Registry)
	default:
		return record.Record{}, fmt.Errorf("locate: reference needs a uid or a key")
	}
	if err != nil {
		return record.Record{}, fmt.Errorf("locate %s: %w", ref, err)
	}

	if ref.WithContent {
		kept := recs[:0:0]
		for _, r := range recs {
			if r.ContentHash != "" {
				kept = append(kept, r)
			}
		}
		recs = kept
	}

	switch {
	case len(recs) == 0:
		return record.Record{}, &Error{Code: CodeNotFound, Message: fmt.Sprintf("no %s matches %s", ref.Registry, ref)}
	case len(recs) > 1 && recs[0].CreatedAt.Equal(recs[1].CreatedAt):
		return record.Record{}, &Error{
			Code:       code,
			Message:    fmt.Sprintf("%d records match %s and the newest share a creation time", len(recs), ref),
			Candidates: recs,
		}
	}
	return recs[0], nil
}
