// Package apperr defines the error categories shared across the backup engine.
package apperr

import "errors"

var (
	// ErrValidation marks an illegal value, e.g. a fingerprint path
	// containing a newline.
	ErrValidation = errors.New("validation error")

	// ErrParse marks malformed persisted status content. A status file
	// that fails to parse is rejected whole, never partially trusted.
	ErrParse = errors.New("parse error")

	// ErrConsistency marks a file that changed between fingerprinting
	// and archiving.
	ErrConsistency = errors.New("consistency error")

	// ErrRemote marks a failed upload or remote job. It must prevent the
	// status write so the directory stays eligible for retry.
	ErrRemote = errors.New("remote error")
)
