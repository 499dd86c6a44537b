package domain

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a user-entered dollar amount into integer cents.
// Rounding is half away from zero at two places, so "12.345" is 1235.
// A leading "$" and "," separators between groups of three digits are
// accepted; exponents are not. Anything else that does not parse, or is not
// positive after rounding, is a KindValidation error.
func ParseAmount(input string) (int64, error) {
	const op = "domain.ParseAmount"

	s := strings.TrimSpace(input)
	s = strings.TrimPrefix(s, "$")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, Errorf(KindValidation, op, "please enter an amount")
	}
	m := amountPattern.FindStringSubmatch(s)
	if m == nil || (m[2] == "" && strings.Trim(m[3], ".") == "") {
		return 0, Errorf(KindValidation, op, "please enter a valid amount")
	}
	whole := strings.TrimLeft(strings.ReplaceAll(m[2], ",", ""), "0")
	if len(whole) > maxWholeDigits {
		return 0, Errorf(KindValidation, op, "amount is too large")
	}
	if whole == "" {
		whole = "0"
	}
	frac := m[3]
	if frac == "." {
		frac = ""
	}

	d, err := decimal.NewFromString(m[1] + whole + frac)
	if err != nil {
		return 0, &Error{Kind: KindValidation, Op: op, Message: "please enter a valid amount", Err: err}
	}
	cents := d.Round(2).Shift(2)
	if !cents.IsPositive() {
		return 0, Errorf(KindValidation, op, "amount must be greater than 0")
	}
	if cents.GreaterThan(decimal.NewFromInt(maxCents)) {
		return 0, Errorf(KindValidation, op, "amount is too large")
	}
	return cents.IntPart(), nil
}

// maxCents keeps parsed amounts well inside int64.
const maxCents = 1_000_000_000_000_00

// maxWholeDigits bounds the dollar digits before any decimal arithmetic.
const maxWholeDigits = 13

// amountPattern captures sign, whole part (plain or grouped by threes) and
// fraction.
var amountPattern = regexp.MustCompile(`^([+-]?)(\d{1,3}(?:,\d{3})+|\d*)(\.\d*)?$`)

// FormatCents renders integer cents as dollars, e.g. 123456 -> "$1234.56"
// and -105 -> "-$1.05".
func FormatCents(cents int64) string {
	d := decimal.New(cents, -2)
	if d.IsNegative() {
		return "-$" + d.Abs().StringFixed(2)
	}
	return "$" + d.StringFixed(2)
}
