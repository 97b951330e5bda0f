package store

import (
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

var (
	// ErrDuplicateIdentity is returned when a write collides with an
	// existing uid, version label or successor link.
	ErrDuplicateIdentity = errors.New("duplicate identity")

	// ErrAlreadyAttached is returned when content is already attached and
	// replacement was not requested.
	ErrAlreadyAttached = errors.New("already attached")

	// ErrNotFound is returned when a referenced record or run does not exist.
	ErrNotFound = errors.New("not found")

	// ErrHasSuccessor is returned when deleting a version another version
	// revises.
	ErrHasSuccessor = errors.New("version has a successor")
)

// mapConstraint turns SQLite uniqueness violations into ErrDuplicateIdentity.
func mapConstraint(err error) error {
	var se sqlite3.Error
	if errors.As(err, &se) && se.Code == sqlite3.ErrConstraint {
		switch se.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("%w: %v", ErrDuplicateIdentity, err)
		}
	}
	return err
}
