package domain

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can pick an inline message without
// parsing error strings.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindUnauthorized
	KindInsufficientBalance
	KindNotFound
	KindInvalidCode
	KindExpired
	KindInvalidPhoneNumber
	KindSameAccount
	KindNetwork
	KindBusy
)

var kindNames = map[Kind]string{
	KindUnknown:             "unknown",
	KindValidation:          "validation",
	KindUnauthorized:        "unauthorized",
	KindInsufficientBalance: "insufficient_balance",
	KindNotFound:            "not_found",
	KindInvalidCode:         "invalid_code",
	KindExpired:             "expired",
	KindInvalidPhoneNumber:  "invalid_phone_number",
	KindSameAccount:         "same_account",
	KindNetwork:             "network",
	KindBusy:                "busy",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is a classified wallet error. Op names the operation that failed,
// Code and Message carry the server's errorCode/message when there was one.
type Error struct {
	Kind    Kind
	Op      string
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Errorf builds a classified error with a formatted message.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the Kind of the first *Error in err's chain, or
// KindUnknown when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// UserMessage renders err as a short line suitable for showing next to the
// control that triggered it.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		switch e.Kind {
		case KindValidation, KindInvalidPhoneNumber, KindInvalidCode, KindInsufficientBalance:
			// Local validation and the server both phrase these for humans.
			if e.Message != "" {
				return e.Message
			}
		}
		if e.Kind != KindUnknown && e.Kind != KindNetwork && e.Code != "" && e.Message != "" {
			return e.Message
		}
		switch e.Kind {
		case KindValidation:
			return "please check your input"
		case KindUnauthorized:
			return "session expired, please log in again"
		case KindInsufficientBalance:
			return "insufficient balance"
		case KindNotFound:
			return "account not found"
		case KindInvalidCode:
			return "invalid verification code"
		case KindExpired:
			return "verification code expired, request a new one"
		case KindInvalidPhoneNumber:
			return "invalid phone number"
		case KindSameAccount:
			return "choose a different account to transfer to"
		case KindNetwork:
			return "network error, please try again"
		case KindBusy:
			return "a request for this account is already in progress"
		}
	}
	return "an unknown error occurred"
}
