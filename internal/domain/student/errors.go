package student

import "errors"

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrInvalidCode - invalid student code.
	ErrInvalidCode = errors.New("invalid student code: must be 1-30 chars without whitespace")

	// ErrInvalidName - invalid student name.
	ErrInvalidName = errors.New("invalid student name: must be 1-100 chars")

	// ErrInvalidClass - invalid class label.
	ErrInvalidClass = errors.New("invalid class label: must be 1-30 chars")

	// ErrRecordNotFound - student record not found.
	ErrRecordNotFound = errors.New("student record not found")

	// ErrRecordAlreadyExists - student record already exists.
	ErrRecordAlreadyExists = errors.New("student record already exists")
)
