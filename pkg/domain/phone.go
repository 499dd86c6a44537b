package domain

import (
	"regexp"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// DefaultRegion is used for numbers typed without a country code.
const DefaultRegion = "US"

var e164Pattern = regexp.MustCompile(`^\+[1-9][0-9]{1,14}$`)

// NormalizePhone parses a user-typed phone number and returns it in E.164
// form. Numbers without a leading "+" are read in the given region, so
// "6692514001" in "US" becomes "+16692514001".
func NormalizePhone(raw, region string) (string, error) {
	const op = "domain.NormalizePhone"

	s := strings.TrimSpace(raw)
	if s == "" {
		return "", Errorf(KindInvalidPhoneNumber, op, "please enter a phone number")
	}
	if region == "" {
		region = DefaultRegion
	}
	num, err := phonenumbers.Parse(s, strings.ToUpper(region))
	if err != nil {
		return "", &Error{Kind: KindInvalidPhoneNumber, Op: op, Message: "invalid phone number", Err: err}
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", Errorf(KindInvalidPhoneNumber, op, "invalid phone number")
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

// IsE164 reports whether s is already in canonical E.164 form.
func IsE164(s string) bool {
	return e164Pattern.MatchString(s)
}
