package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestKindOfWrapped(t *testing.T) {
	base := &Error{Kind: KindInsufficientBalance, Op: "client.Withdraw", Message: "not enough money"}
	wrapped := fmt.Errorf("wallet.Withdraw: %w", base)

	if got := KindOf(wrapped); got != KindInsufficientBalance {
		t.Errorf("KindOf() = %v, want %v", got, KindInsufficientBalance)
	}
	if !IsKind(wrapped, KindInsufficientBalance) {
		t.Error("IsKind() = false, want true")
	}
	if IsKind(nil, KindUnknown) {
		t.Error("IsKind(nil) = true, want false")
	}
	if got := KindOf(errors.New("plain")); got != KindUnknown {
		t.Errorf("KindOf(plain) = %v, want unknown", got)
	}
}

func TestErrorString(t *testing.T) {
	e := &Error{Kind: KindNetwork, Op: "client.FetchUser", Err: errors.New("connection refused")}
	if got := e.Error(); got != "client.FetchUser: connection refused" {
		t.Errorf("Error() = %q", got)
	}
	if got := (&Error{Kind: KindBusy}).Error(); got != "busy" {
		t.Errorf("Error() = %q, want %q", got, "busy")
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"plain error", errors.New("x"), "an unknown error occurred"},
		{"validation keeps message", Errorf(KindValidation, "op", "amount must be greater than 0"), "amount must be greater than 0"},
		{"server message preferred", &Error{Kind: KindNotFound, Code: "account_not_found", Message: "no such account"}, "no such account"},
		{"network generic", &Error{Kind: KindNetwork, Err: errors.New("dial tcp")}, "network error, please try again"},
		{"unauthorized generic", &Error{Kind: KindUnauthorized}, "session expired, please log in again"},
		{"same account", &Error{Kind: KindSameAccount}, "choose a different account to transfer to"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserMessage(tt.err); got != tt.want {
				t.Errorf("UserMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u1",
		"exp": exp.Unix(),
	}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatal(err)
	}

	got, ok := TokenExpiry(tok)
	if !ok {
		t.Fatal("TokenExpiry() ok = false, want true")
	}
	if !got.Equal(exp) {
		t.Errorf("TokenExpiry() = %v, want %v", got, exp)
	}

	if _, ok := TokenExpiry("opaque-token"); ok {
		t.Error("TokenExpiry(opaque) ok = true, want false")
	}
	if !strings.Contains(KindBusy.String(), "busy") {
		t.Error("Kind.String() missing name")
	}
}
