package domain

import "errors"

// Kind classifies domain errors so transport layers can map them to status codes.
type Kind int

const (
	// KindConflict is a state conflict: the operation is valid but the current
	// state of the target row forbids it (copy already borrowed, classroom occupied).
	KindConflict Kind = iota + 1
	// KindValidation is a failed precondition tied to a specific input field.
	KindValidation
	// KindNotFound means the referenced entity does not exist.
	KindNotFound
)

// Error is a domain error carrying its kind and, for validation errors, the
// offending field. Anything that is not a *Error is treated as fatal/opaque.
type Error struct {
	Kind    Kind
	Field   string
	Message string
}

func (e *Error) Error() string { return e.Message }

// Conflict reports a state conflict.
func Conflict(msg string) error {
	return &Error{Kind: KindConflict, Message: msg}
}

// Validation reports a failed precondition on the named input field.
func Validation(field, msg string) error {
	return &Error{Kind: KindValidation, Field: field, Message: msg}
}

// NotFound reports a missing entity.
func NotFound(msg string) error {
	return &Error{Kind: KindNotFound, Message: msg}
}

// As unwraps err into a *Error if it is one.
func As(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

func is(err error, kind Kind) bool {
	de, ok := As(err)
	return ok && de.Kind == kind
}

// IsConflict reports whether err is a state-conflict error.
func IsConflict(err error) bool { return is(err, KindConflict) }

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool { return is(err, KindValidation) }

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool { return is(err, KindNotFound) }
