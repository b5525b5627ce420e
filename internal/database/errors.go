package database

import "errors"

var (
	// ErrNotFound is returned when opening a database that does not exist
	// without CreateIfNotExists.
	ErrNotFound = errors.New("history database not found")

	// ErrMissingRunID is returned when saving a summary without a run ID.
	ErrMissingRunID = errors.New("summary has no run id")
)
