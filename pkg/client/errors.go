package client

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/walletwizard/wizard/pkg/domain"
)

// HTTPError represents a non-2xx HTTP response from the API.
type HTTPError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// apiError is the ledger's error body.
type apiError struct {
	ErrorCode string `json:"errorCode"`
	Message   string `json:"message"`
}

// IsStatus returns true if err (or any wrapped error) is an HTTPError with the given status code.
func IsStatus(err error, code int) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == code
	}
	return false
}

// Server error codes understood by the client.
var codeKinds = map[string]domain.Kind{
	"validation_error":     domain.KindValidation,
	"invalid_amount":       domain.KindValidation,
	"invalid_name":         domain.KindValidation,
	"missing_token":        domain.KindUnauthorized,
	"unauthorized":         domain.KindUnauthorized,
	"invalid_token":        domain.KindUnauthorized,
	"insufficient_balance": domain.KindInsufficientBalance,
	"insufficient_funds":   domain.KindInsufficientBalance,
	"account_not_found":    domain.KindNotFound,
	"not_found":            domain.KindNotFound,
	"invalid_code":         domain.KindInvalidCode,
	"code_expired":         domain.KindExpired,
	"expired":              domain.KindExpired,
	"invalid_phone_number": domain.KindInvalidPhoneNumber,
	"same_account":         domain.KindSameAccount,
}

// classify maps an HTTP failure to a domain error kind, preferring the
// server's errorCode over the status.
func classify(op string, httpErr *HTTPError) error {
	kind, ok := codeKinds[httpErr.Code]
	if !ok {
		kind = statusKind(httpErr.StatusCode)
	}
	msg := ""
	if httpErr.Code != "" {
		msg = httpErr.Message
	}
	return &domain.Error{Kind: kind, Op: op, Code: httpErr.Code, Message: msg, Err: httpErr}
}

func statusKind(status int) domain.Kind {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return domain.KindValidation
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.KindUnauthorized
	case http.StatusNotFound:
		return domain.KindNotFound
	case http.StatusGone:
		return domain.KindExpired
	case http.StatusConflict, http.StatusTooManyRequests:
		return domain.KindBusy
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return domain.KindNetwork
	}
	return domain.KindUnknown
}
