package report

import (
	"fmt"

	"github.com/roach88/stemtrack/internal/hasher"
	"github.com/roach88/stemtrack/internal/record"
	"github.com/roach88/stemtrack/internal/resolver"
)

// Action is what happens to one attachment.
type Action int

const (
	// Unchanged leaves the stored attachment as it is.
	Unchanged Action = iota
	// New stores the content as a new attachment.
	New
	// Replace overwrites the stored attachment.
	Replace
	// Abort skips the attachment because replacement was declined.
	Abort
)

func (a Action) String() string {
	switch a {
	case Unchanged:
		return "unchanged"
	case New:
		return "new"
	case Replace:
		return "replace"
	case Abort:
		return "abort"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

// SourceAction maps a resolver decision to what happens to the source
// attachment. Source replacement has already been consented to during
// resolution.
func SourceAction(d *resolver.Decision) Action {
	switch {
	case !d.AttachSource:
		return Unchanged
	case d.ReplaceSource:
		return Replace
	default:
		return New
	}
}

// ReportAction decides what happens to a freshly rendered report given the
// report currently attached to the run, if any. Replacing a report with
// different content asks consent independently of the source.
func ReportAction(current *record.Record, rendered []byte, consent resolver.ConsentPolicy) Action {
	if rendered == nil {
		return Unchanged
	}
	if current == nil {
		return New
	}
	hash := hasher.HashBytes(rendered)
	if current.ContentHash == hash {
		return Unchanged
	}
	p := resolver.Prompt{
		Kind:     resolver.PromptReplaceReport,
		Message:  "report of the latest run differs; replace it",
		Current:  fmt.Sprintf("%s %s", current.UID, current.ContentHash),
		Proposed: string(hash),
	}
	if !consent.Confirm(p) {
		return Abort
	}
	return Replace
}
