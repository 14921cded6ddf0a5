package activation

import (
	"errors"
	"unicode"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/nyaruka/phonenumbers"
)

// DefaultPhoneRegion is used to parse phone numbers without a country prefix.
const DefaultPhoneRegion = "US"

// ValidateStringEquals builds a rule asserting the value matches str.
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errors.New("values must match")
		}
		return nil
	}
}

// ValidatePhoneNumber builds a rule that parses the value as a phone number
// for the given region and rejects numbers the metadata considers invalid.
func ValidatePhoneNumber(region string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s == "" {
			// presence is handled by validation.Required
			return nil
		}
		num, err := phonenumbers.Parse(s, region)
		if err != nil {
			return errors.New("must be a valid phone number")
		}
		if !phonenumbers.IsValidNumber(num) {
			return errors.New("must be a valid phone number")
		}
		return nil
	}
}

// DefaultPasswordPolicy requires at least 8 characters with one upper case
// letter, one lower case letter, and one digit.
var DefaultPasswordPolicy PasswordPolicy = PasswordPolicyFunc(func(password string) error {
	var upper, lower, digit bool
	length := 0
	for _, r := range password {
		length++
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if length < 8 || !upper || !lower || !digit {
		return errors.New("must be at least 8 characters with upper, lower, and digit")
	}
	return nil
})

// validatePolicy adapts a PasswordPolicy into an ozzo rule.
func validatePolicy(policy PasswordPolicy) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s == "" {
			return nil
		}
		if policy == nil {
			return nil
		}
		return policy.Validate(s)
	}
}
