package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a custody failure. The kind is rendered as the prefix of the
// error message so that gateway clients can match on it.
type ErrorKind string

const (
	KindNotFound               ErrorKind = "NOT_FOUND"
	KindAlreadyExists          ErrorKind = "ALREADY_EXISTS"
	KindUnauthorizedRole       ErrorKind = "UNAUTHORIZED_ROLE"
	KindNotCurrentOwner        ErrorKind = "NOT_CURRENT_OWNER"
	KindInvalidStateTransition ErrorKind = "INVALID_STATE_TRANSITION"
	KindInvalidDate            ErrorKind = "INVALID_DATE"
	KindExpiredAsset           ErrorKind = "EXPIRED_ASSET"
	KindDeserialization        ErrorKind = "DESERIALIZATION_ERROR"
	KindInvalidArgument        ErrorKind = "INVALID_ARGUMENT"
	KindInvalidRecipient       ErrorKind = "INVALID_RECIPIENT" // Transfer target does not hold the role the next leg requires
	KindIdentity               ErrorKind = "IDENTITY_ERROR"    // Caller identity could not be read from the transaction
)

// CustodyError is the error type returned for every business-rule failure of the
// custody state machine.
type CustodyError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *CustodyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *CustodyError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a CustodyError of the same kind, so that the
// sentinels below work with errors.Is.
func (e *CustodyError) Is(target error) bool {
	t, ok := target.(*CustodyError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is comparisons.
var (
	ErrNotFound               = &CustodyError{Kind: KindNotFound}
	ErrAlreadyExists          = &CustodyError{Kind: KindAlreadyExists}
	ErrUnauthorizedRole       = &CustodyError{Kind: KindUnauthorizedRole}
	ErrNotCurrentOwner        = &CustodyError{Kind: KindNotCurrentOwner}
	ErrInvalidStateTransition = &CustodyError{Kind: KindInvalidStateTransition}
	ErrInvalidDate            = &CustodyError{Kind: KindInvalidDate}
	ErrExpiredAsset           = &CustodyError{Kind: KindExpiredAsset}
	ErrDeserialization        = &CustodyError{Kind: KindDeserialization}
	ErrInvalidArgument        = &CustodyError{Kind: KindInvalidArgument}
	ErrInvalidRecipient       = &CustodyError{Kind: KindInvalidRecipient}
	ErrIdentity               = &CustodyError{Kind: KindIdentity}
)

// NewError builds a CustodyError with a formatted message.
func NewError(kind ErrorKind, format string, args ...interface{}) *CustodyError {
	return &CustodyError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError builds a CustodyError that keeps the underlying cause.
func WrapError(kind ErrorKind, err error, format string, args ...interface{}) *CustodyError {
	return &CustodyError{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of the first CustodyError in err's chain, or "" when the
// error did not originate from a custody rule (e.g. a ledger read failure).
func KindOf(err error) ErrorKind {
	var ce *CustodyError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}
