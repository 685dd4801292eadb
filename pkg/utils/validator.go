package utils

import (
	"fmt"
	"regexp"
)

var currencyCodeRegex = regexp.MustCompile(`^[A-Za-z]{3}$`)

// ValidateCurrencyCode checks that a currency code looks like an ISO 4217
// alphabetic code. The rate service decides whether the code actually exists.
func ValidateCurrencyCode(code string) error {
	if !currencyCodeRegex.MatchString(code) {
		return fmt.Errorf("invalid currency code: %q", code)
	}
	return nil
}

// ValidateAmount checks that an expense amount is positive
func ValidateAmount(amount float64) error {
	if amount <= 0 {
		return fmt.Errorf("amount must be positive: %.2f", amount)
	}
	return nil
}
