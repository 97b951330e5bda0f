// Package report turns a notebook into the two byte streams that are
// stored for it: a stripped source that only changes when the code
// changes, and a rendered report for humans.
//
// Rendering itself is delegated to an external tool behind Renderer. The
// package also decides whether each stream becomes a new attachment,
// replaces an existing one or is left alone; replacements are never made
// without consent.
package report
