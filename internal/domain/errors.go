package domain

import "errors"

var (
	// ErrNotFound marks an update or delete against an absent identity.
	ErrNotFound = errors.New("record not found")
	// ErrConflict marks a rejected mutation that violates a business rule,
	// such as a second open call for a table or an illegal status transition.
	ErrConflict = errors.New("validation conflict")
	// ErrInvalid marks malformed input the caller must correct.
	ErrInvalid = errors.New("invalid input")
)
