package resolver

import "fmt"

// PromptKind names a question the save flow may need answered.
type PromptKind string

const (
	// PromptVersionBump asks whether changed content should become a new
	// version of the family.
	PromptVersionBump PromptKind = "version_bump"

	// PromptReplaceSource asks whether the source attached to an existing
	// version may be overwritten.
	PromptReplaceSource PromptKind = "replace_source"

	// PromptReplaceReport asks whether the report of an existing run may be
	// overwritten.
	PromptReplaceReport PromptKind = "replace_report"

	// PromptForeignRun asks whether to attach to a run created by another
	// user.
	PromptForeignRun PromptKind = "foreign_run"

	// PromptNonConsecutive asks whether to save a notebook whose cells were
	// not executed in order.
	PromptNonConsecutive PromptKind = "non_consecutive"
)

// UnattendedDefault is the answer given when nobody can be asked.
// Only creating a new version proceeds; it never touches existing data.
func (k PromptKind) UnattendedDefault() bool {
	return k == PromptVersionBump
}

// Prompt is one consent question. Current and Proposed carry the
// identifiers the user is choosing between.
type Prompt struct {
	Kind     PromptKind
	Message  string
	Current  string
	Proposed string
}

func (p Prompt) String() string {
	if p.Current != "" && p.Proposed != "" {
		return fmt.Sprintf("%s (current: %s, proposed: %s)", p.Message, p.Current, p.Proposed)
	}
	if p.Current != "" {
		return fmt.Sprintf("%s (%s)", p.Message, p.Current)
	}
	return p.Message
}

// ConsentPolicy answers prompts on behalf of the user. The resolver never
// talks to a terminal itself.
type ConsentPolicy interface {
	Confirm(p Prompt) bool
}

type alwaysPolicy struct{}

func (alwaysPolicy) Confirm(Prompt) bool { return true }

type neverPolicy struct{}

func (neverPolicy) Confirm(p Prompt) bool { return p.Kind.UnattendedDefault() }

// ConsentFunc adapts a callback to ConsentPolicy.
type ConsentFunc func(p Prompt) bool

func (f ConsentFunc) Confirm(p Prompt) bool { return f(p) }

var (
	// Always confirms every prompt. Used in test and CI contexts so that
	// automation is never blocked.
	Always ConsentPolicy = alwaysPolicy{}

	// Never asks anyone. Each prompt gets its unattended default, which
	// declines every replacement.
	Never ConsentPolicy = neverPolicy{}
)

// Ask delegates every prompt to fn, typically a terminal question.
func Ask(fn func(p Prompt) bool) ConsentPolicy {
	return ConsentFunc(fn)
}
