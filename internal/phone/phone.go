// Package phone canonicalizes customer phone numbers to the single
// dialable form stored in the database and handed to the messaging
// channels. Every code path that accepts a phone number (join, manual
// add, edit, verification) must go through Normalize.
package phone

import (
	"errors"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// DefaultRegion is the numbering plan assumed for inputs without a
// country code.
const DefaultRegion = "AR"

// ErrInvalidPhone is returned when the input cannot be parsed as a
// valid number for the region.
var ErrInvalidPhone = errors.New("invalid phone number")

// Normalize parses raw input against the given region and returns the
// canonical E.164 form.
//
// Argentine mobile numbers get a "9" inserted between the country code
// and the area code by the parser ("+549..."). The messaging channels
// expect the bare "+54..." form, so that prefix digit is stripped.
func Normalize(raw, region string) (string, error) {
	if region == "" {
		region = DefaultRegion
	}
	if strings.TrimSpace(raw) == "" {
		return "", ErrInvalidPhone
	}

	num, err := phonenumbers.Parse(raw, region)
	if err != nil {
		return "", ErrInvalidPhone
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", ErrInvalidPhone
	}

	formatted := phonenumbers.Format(num, phonenumbers.E164)
	if strings.HasPrefix(formatted, "+549") {
		formatted = "+54" + formatted[len("+549"):]
	}
	return formatted, nil
}
