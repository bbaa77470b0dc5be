package domain

import (
	"errors"
	"fmt"
)

// Code classifies an Error for callers that need to react to the kind of
// failure rather than to a particular message.
type Code string

const (
	CodeNotFound     Code = "not_found"
	CodeUnauthorized Code = "unauthorized"
	CodeInvalidInput Code = "invalid_input"
	CodeInvalidState Code = "invalid_state"
	CodeRateLimited  Code = "rate_limited"
	CodeInternal     Code = "internal"
)

// Error is the domain error type. Every rejected command surfaces one of
// these to the calling connection.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches on code, and on message when the target carries one. A target
// with an empty message matches every error of that code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if e.Code != t.Code {
		return false
	}
	return t.Message == "" || t.Message == e.Message
}

func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func WrapError(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// CodeOf returns the code of the first *Error in err's chain, or
// CodeInternal for anything else.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// Kind sentinels, matching any error of the code.
var (
	ErrNotFound     = &Error{Code: CodeNotFound}
	ErrUnauthorized = &Error{Code: CodeUnauthorized}
	ErrInvalidInput = &Error{Code: CodeInvalidInput}
	ErrInvalidState = &Error{Code: CodeInvalidState}
)

var (
	ErrRoomNotFound        = NewError(CodeNotFound, "room not found")
	ErrUnknownTemplate     = NewError(CodeNotFound, "unknown template")
	ErrParticipantNotFound = NewError(CodeNotFound, "participant not found")

	ErrNotAdmin     = NewError(CodeUnauthorized, "not authorized")
	ErrInvalidToken = NewError(CodeUnauthorized, "invalid admin token")

	ErrNameRequired  = NewError(CodeInvalidInput, "name is required")
	ErrTopicRequired = NewError(CodeInvalidInput, "topic is required")
	ErrNoTemplates   = NewError(CodeInvalidInput, "at least one template is required")
	ErrInvalidTimer  = NewError(CodeInvalidInput, fmt.Sprintf("timer must be between 1 and %d seconds", MaxTimerSeconds))
	ErrInvalidVote   = NewError(CodeInvalidInput, "invalid vote")
	ErrBadPayload    = NewError(CodeInvalidInput, "bad payload")

	ErrNotInRoom          = NewError(CodeInvalidState, "not in a room")
	ErrAdminCannotJoin    = NewError(CodeInvalidState, "admin is already in this room")
	ErrNoActiveVoting     = NewError(CodeInvalidState, "no active voting")
	ErrNoActiveRound      = NewError(CodeInvalidState, "no active round")
	ErrTemplateNotInRound = NewError(CodeInvalidState, "invalid template for this round")
)

// UnknownTemplate reports id as not present in the catalog.
func UnknownTemplate(id TemplateID) error {
	return WrapError(CodeNotFound, ErrUnknownTemplate.Message, fmt.Errorf("%q", string(id)))
}
