package models

import (
	"errors"
	"fmt"
)

var ErrValidation = errors.New("")        // Base error for malformed or incomplete input
var ErrConflict = errors.New("")          // Base error for state-machine or business-rule violations
var ErrQuantityExceeded = errors.New("")  // Base error for insufficient ledger balance
var ErrInvalidConversion = errors.New("") // Base error for undefined unit conversion
var ErrNotFound = errors.New("")          // Base error for missing documents

// Shared conflicts
var ErrNotDraft = fmt.Errorf("document is not in draft%w", ErrConflict)
var ErrNotSubmitted = fmt.Errorf("document is not submitted%w", ErrConflict)
var ErrAlreadyCancelled = fmt.Errorf("document is already cancelled%w", ErrConflict)

func NewValidationError(format string, args ...any) error {
	return fmt.Errorf(format+"%w", append(args, ErrValidation)...)
}

func NewConflictError(format string, args ...any) error {
	return fmt.Errorf(format+"%w", append(args, ErrConflict)...)
}

func NewQuantityExceededError(format string, args ...any) error {
	return fmt.Errorf(format+"%w", append(args, ErrQuantityExceeded)...)
}

func NewInvalidConversionError(format string, args ...any) error {
	return fmt.Errorf(format+"%w", append(args, ErrInvalidConversion)...)
}

func NewNotFoundError(doctype string, id any) error {
	return fmt.Errorf("%s %v not found%w", doctype, id, ErrNotFound)
}
