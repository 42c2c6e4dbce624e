package enrollment

import (
	"errors"
	"fmt"
)

// Kind classifies a workflow failure so callers can map it to a response.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindNotFound
	KindConflict
	KindUnavailable
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUnavailable:
		return "unavailable"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is a workflow failure with a human-readable message. Two errors are
// equal under errors.Is when their codes match, so the sentinels below can
// be compared against errors carrying a more specific message.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// withMessage returns a copy of e with a specific message and cause.
func (e *Error) withMessage(message string, cause error) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: message, Err: cause}
}

var (
	ErrInvalidInput = &Error{Kind: KindValidation, Code: "INVALID_INPUT", Message: "invalid input"}

	ErrStudentNotFound    = &Error{Kind: KindNotFound, Code: "STUDENT_NOT_FOUND", Message: "student not found"}
	ErrCourseNotFound     = &Error{Kind: KindNotFound, Code: "COURSE_NOT_FOUND", Message: "course not found"}
	ErrEnrollmentNotFound = &Error{Kind: KindNotFound, Code: "ENROLLMENT_NOT_FOUND", Message: "enrollment not found"}

	ErrCourseFull          = &Error{Kind: KindConflict, Code: "COURSE_FULL", Message: "course is full"}
	ErrDuplicateEnrollment = &Error{Kind: KindConflict, Code: "DUPLICATE_ENROLLMENT", Message: "student is already enrolled in this course"}
	ErrNotActive           = &Error{Kind: KindConflict, Code: "NOT_ACTIVE", Message: "enrollment is not active"}

	ErrUpstreamUnavailable = &Error{Kind: KindUnavailable, Code: "UPSTREAM_UNAVAILABLE", Message: "upstream service unavailable"}

	ErrInternal = &Error{Kind: KindInternal, Code: "INTERNAL", Message: "internal error"}
)

// KindOf returns the Kind of a workflow error, or zero for anything else.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
