package game

import (
	"errors"
	"fmt"
)

// Kind groups errors by how a transport should treat them.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindInvalidInput
	KindStoreUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvalidInput:
		return "invalid_input"
	case KindStoreUnavailable:
		return "store_unavailable"
	default:
		return "unknown"
	}
}

// Code is a stable, client-facing error code.
type Code string

const (
	CodeUnknown             Code = "UNKNOWN"
	CodeSessionNotFound     Code = "SESSION_NOT_FOUND"
	CodeParticipantNotFound Code = "PARTICIPANT_NOT_FOUND"
	CodeNameEmpty           Code = "NAME_EMPTY"
	CodeCardInvalid         Code = "CARD_INVALID"
	CodeSpectatorPick       Code = "SPECTATOR_CANNOT_PICK"
	CodeRoundRevealed       Code = "ROUND_REVEALED"
	CodeStoreUnavailable    Code = "STORE_UNAVAILABLE"
	CodeUnknownCommand      Code = "UNKNOWN_COMMAND"
	CodeBadRequest          Code = "BAD_REQUEST"
)

// Error is returned by every coordinator operation that can be rejected.
type Error struct {
	Kind    Kind
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

func notFound(code Code, format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: fmt.Sprintf(format, args...)}
}

func invalidInput(code Code, format string, args ...interface{}) *Error {
	return &Error{Kind: KindInvalidInput, Code: code, Message: fmt.Sprintf(format, args...)}
}

func storeUnavailable(cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: KindStoreUnavailable, Code: CodeStoreUnavailable, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// InvalidInput builds an input error for callers outside the package, such as
// request decoding at a transport boundary.
func InvalidInput(code Code, format string, args ...interface{}) error {
	return invalidInput(code, format, args...)
}

// KindOf reports the kind of err, or KindUnknown if it is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// CodeOf reports the code of err, or CodeUnknown if it is not an *Error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// MessageOf reports the human readable part of err without wrapped causes.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
