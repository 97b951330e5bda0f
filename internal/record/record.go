// Package record defines the rows exchanged with the record store.
//
// These types are the contract between the core (resolver, locator) and
// any store implementation. They carry no behavior beyond accessors.
package record

import (
	"time"

	"github.com/roach88/stemtrack/internal/hasher"
	"github.com/roach88/stemtrack/internal/uid"
)

// Registry names a record table. The same tokens appear in canonical URLs.
type Registry string

const (
	Transform  Registry = "transform"
	Artifact   Registry = "artifact"
	Collection Registry = "collection"
)

// Registries lists every registry in URL-matching order.
var Registries = []Registry{Transform, Artifact, Collection}

// Valid reports whether r is a known registry.
func (r Registry) Valid() bool {
	switch r {
	case Transform, Artifact, Collection:
		return true
	}
	return false
}

// Record is one version of a tracked source or a stored artifact.
type Record struct {
	UID      uid.UID  `json:"uid"`
	Registry Registry `json:"registry"`
	// Kind is the source kind of a transform ("script", "notebook",
	// "shell"); empty for artifacts.
	Kind         string             `json:"kind,omitempty"`
	Key          string             `json:"key,omitempty"`
	Description  string             `json:"description,omitempty"`
	VersionLabel string             `json:"version,omitempty"`
	ContentHash  hasher.ContentHash `json:"hash,omitempty"`
	Size         int64              `json:"size,omitempty"`
	Revises      uid.UID            `json:"revises,omitempty"`
	CreatedBy    string             `json:"created_by"`
	CreatedAt    time.Time          `json:"created_at"`
}

// Stem returns the version family of the record.
func (r Record) Stem() string {
	return r.UID.Stem()
}

// Run is one execution of a transform.
type Run struct {
	ID           string     `json:"id"`
	TransformUID uid.UID    `json:"transform"`
	CreatedBy    string     `json:"created_by"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	// IsConsecutive is set for notebook runs once execution order has been
	// checked.
	IsConsecutive  *bool   `json:"is_consecutive,omitempty"`
	ReportUID      uid.UID `json:"report,omitempty"`
	EnvironmentUID uid.UID `json:"environment,omitempty"`
}

// Feature is one annotation value on a record. Values holds one element
// for a scalar feature.
type Feature struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}
