package auth

import (
	"errors"
	"fmt"
)

// Kind classifies failures so the transport can map them to a status.
type Kind int

const (
	KindInternal Kind = iota
	KindInvalidCredential
	KindUnauthorized
	KindForbidden
	KindDuplicateEmail
	KindNotFound
	KindConflict
	KindDelivery
)

func (k Kind) String() string {
	switch k {
	case KindInvalidCredential:
		return "invalid_credential"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindDuplicateEmail:
		return "duplicate_email"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindDelivery:
		return "delivery"
	default:
		return "internal"
	}
}

// Error is a domain error with a message that is safe to show to callers.
// Err holds the underlying cause, if any, and is never exposed to clients.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same kind, so that
// errors.Is(err, ErrUnauthorized) matches any unauthorized failure.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinel errors, one per kind.
var (
	ErrInternal          = &Error{Kind: KindInternal, Message: "Something went wrong."}
	ErrInvalidCredential = &Error{Kind: KindInvalidCredential, Message: "Invalid credential."}
	ErrUnauthorized      = &Error{Kind: KindUnauthorized, Message: "Please sign in again."}
	ErrForbidden         = &Error{Kind: KindForbidden, Message: "Forbidden."}
	ErrDuplicateEmail    = &Error{Kind: KindDuplicateEmail, Message: "Please use a different email."}
	ErrNotFound          = &Error{Kind: KindNotFound, Message: "Not found."}
	ErrConflict          = &Error{Kind: KindConflict, Message: "The record was modified concurrently, please retry."}
	ErrDelivery          = &Error{Kind: KindDelivery, Message: "Unable to deliver the message."}
)

// Messages shared between operations. Sign-in and activation must use the
// same text for an unknown email and a wrong password.
const (
	msgInvalidLogin    = "Invalid email or password."
	msgPleaseLogIn     = "Please log in."
	msgDeactivated     = "Account is deactivated."
	msgNotOwner        = "You are not allowed to modify this account."
	msgUserNotFound    = "User not found."
	msgWrongPassword   = "Incorrect current password."
	msgWrongEmail      = "Incorrect current email."
	msgPasswordTooLong = "Password must be at most 72 bytes long."
	msgResetRequested  = "If the email is registered, a password reset token has been sent."
	msgInternalDefault = "Something went wrong."
)

func newError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// Internal wraps a backend failure. The cause is kept for logging only.
func Internal(err error) *Error {
	return newError(KindInternal, msgInternalDefault, err)
}

// Unauthorized builds an unauthorized error with the given message.
func Unauthorized(msg string) *Error { return newError(KindUnauthorized, msg, nil) }

// Forbidden builds a forbidden error with the given message.
func Forbidden(msg string) *Error { return newError(KindForbidden, msg, nil) }

// NotFound builds a not-found error with the given message.
func NotFound(msg string) *Error { return newError(KindNotFound, msg, nil) }

// KindOf returns the kind of err; anything that is not an *Error is internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf returns the caller-visible message for err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Message
	}
	return msgInternalDefault
}

// wrapStore converts store failures into domain errors, keeping domain
// errors the store already produced.
func wrapStore(err error) error {
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return Internal(err)
}
