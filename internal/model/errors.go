package model

import (
	"errors"
	"strings"
)

// Repository-level sentinels. Stores return these (possibly wrapped); the
// service layer translates them into typed *Error values.
var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("unique constraint violated")
	ErrTokenMismatch = errors.New("refresh token mismatch")
)

// ErrorKind is the coarse category of a core failure. The transport maps it
// to a status code.
type ErrorKind string

const (
	KindValidation ErrorKind = "ValidationError"
	KindConflict   ErrorKind = "ConflictError"
	KindAuth       ErrorKind = "AuthError"
	KindToken      ErrorKind = "TokenError"
	KindStorage    ErrorKind = "StorageError"
)

// Reason narrows an ErrorKind.
type Reason string

const (
	ReasonMissingField   Reason = "MissingField"
	ReasonMalformedEmail Reason = "MalformedEmail"
	ReasonWeakPassword   Reason = "WeakPassword"
	ReasonInvalidFile    Reason = "InvalidFile"

	ReasonUserExists Reason = "UserExists"

	ReasonUserNotFound   Reason = "UserNotFound"
	ReasonBadPassword    Reason = "BadPassword"
	ReasonSessionRevoked Reason = "SessionRevoked"

	ReasonExpired      Reason = "Expired"
	ReasonBadSignature Reason = "BadSignature"
	ReasonWrongPurpose Reason = "WrongPurpose"
	ReasonMalformed    Reason = "Malformed"

	ReasonUnavailable Reason = "Unavailable"
)

const (
	invalidCredentialsMessage = "invalid credentials"
	sessionExpiredMessage     = "session expired, please log in again"
	internalErrorMessage      = "internal server error"
)

// Error is the tagged failure returned by every core operation.
// Message is safe to show to the caller; Err keeps the internal cause.
type Error struct {
	Kind    ErrorKind
	Reason  Reason
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Reason != "" {
		b.WriteString("(" + string(e.Reason) + ")")
	}
	if e.Message != "" {
		b.WriteString(": " + e.Message)
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind and, when the target names one, by reason.
// This lets callers test either errors.Is(err, ErrAuth) or errors.Is(err, ErrBadPassword).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Reason == "" || t.Reason == e.Reason
}

// Kind sentinels.
var (
	ErrValidation = &Error{Kind: KindValidation}
	ErrAuth       = &Error{Kind: KindAuth}
	ErrToken      = &Error{Kind: KindToken}
	ErrStorage    = &Error{Kind: KindStorage}
)

// Reason sentinels.
var (
	ErrMissingField   = &Error{Kind: KindValidation, Reason: ReasonMissingField}
	ErrMalformedEmail = &Error{Kind: KindValidation, Reason: ReasonMalformedEmail}
	ErrWeakPassword   = &Error{Kind: KindValidation, Reason: ReasonWeakPassword}

	ErrUserExists = &Error{Kind: KindConflict, Reason: ReasonUserExists}

	ErrUserNotFound   = &Error{Kind: KindAuth, Reason: ReasonUserNotFound}
	ErrBadPassword    = &Error{Kind: KindAuth, Reason: ReasonBadPassword}
	ErrSessionRevoked = &Error{Kind: KindAuth, Reason: ReasonSessionRevoked}

	ErrTokenExpired      = &Error{Kind: KindToken, Reason: ReasonExpired}
	ErrTokenBadSignature = &Error{Kind: KindToken, Reason: ReasonBadSignature}
	ErrTokenWrongPurpose = &Error{Kind: KindToken, Reason: ReasonWrongPurpose}
	ErrTokenMalformed    = &Error{Kind: KindToken, Reason: ReasonMalformed}
)

// NewValidationError reports malformed or missing input.
func NewValidationError(reason Reason, field, message string) *Error {
	return &Error{Kind: KindValidation, Reason: reason, Field: field, Message: message}
}

// NewConflictError reports a registration collision.
func NewConflictError(message string, cause error) *Error {
	return &Error{Kind: KindConflict, Reason: ReasonUserExists, Message: message, Err: cause}
}

// NewAuthError reports bad credentials or a revoked session. UserNotFound and
// BadPassword share one outward message so callers cannot tell them apart.
func NewAuthError(reason Reason, cause error) *Error {
	msg := invalidCredentialsMessage
	if reason == ReasonSessionRevoked {
		msg = sessionExpiredMessage
	}
	return &Error{Kind: KindAuth, Reason: reason, Message: msg, Err: cause}
}

// NewTokenError reports an expired, forged or misused token.
func NewTokenError(reason Reason, cause error) *Error {
	return &Error{Kind: KindToken, Reason: reason, Message: sessionExpiredMessage, Err: cause}
}

// NewStorageError wraps a persistence failure. The cause never reaches the caller.
func NewStorageError(cause error) *Error {
	return &Error{Kind: KindStorage, Reason: ReasonUnavailable, Message: internalErrorMessage, Err: cause}
}

// AsError extracts the *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
