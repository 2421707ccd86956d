// utils/validation.go
package utils

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

var ErrInvalidPhone = errors.New("invalid phone number")

// NormalizePhone parses phone in the given default region and returns it in
// E.164 form. Numbers written with a leading + ignore the region.
func NormalizePhone(phone, region string) (string, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidPhone)
	}
	if region == "" {
		region = "US"
	}

	parsed, err := phonenumbers.Parse(phone, strings.ToUpper(region))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPhone, err)
	}
	if !phonenumbers.IsValidNumber(parsed) {
		return "", fmt.Errorf("%w: %s", ErrInvalidPhone, phone)
	}
	return phonenumbers.Format(parsed, phonenumbers.E164), nil
}

// ValidatePhone checks if a phone number is valid for the region
func ValidatePhone(phone, region string) bool {
	_, err := NormalizePhone(phone, region)
	return err == nil
}
