// Package cpf validates and formats Brazilian CPF numbers
// (Cadastro de Pessoas Físicas, the individual taxpayer ID).
//
// All functions are pure and total: any input string, including empty or
// non-digit input, produces a definite result and never panics.
package cpf

import (
	"fmt"
	"strings"
)

// Length is the number of digits in a complete CPF.
const Length = 11

// Normalize strips every non-digit character from raw.
// Partial input (fewer than 11 digits) is returned as-is so callers can
// format keystroke-by-keystroke.
func Normalize(raw string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)
}

// Format masks raw as DDD.DDD.DDD-DD, inserting punctuation progressively
// so it behaves correctly while the user is still typing. Input longer than
// 11 digits is truncated. Format is stateless: it is a function of the
// current raw string only, and Normalize(Format(raw)) == Normalize(raw)
// up to the 11-digit truncation.
func Format(raw string) string {
	digits := Normalize(raw)
	switch {
	case len(digits) <= 3:
		return digits
	case len(digits) <= 6:
		return fmt.Sprintf("%s.%s", digits[:3], digits[3:])
	case len(digits) <= 9:
		return fmt.Sprintf("%s.%s.%s", digits[:3], digits[3:6], digits[6:])
	default:
		if len(digits) > Length {
			digits = digits[:Length]
		}
		return fmt.Sprintf("%s.%s.%s-%s", digits[:3], digits[3:6], digits[6:9], digits[9:])
	}
}

// IsValid reports whether raw normalizes to a valid CPF: exactly 11 digits,
// not all identical, with both check digits matching the weighted mod-11
// scheme (digit 10 over positions 1..9 with weights 10..2, digit 11 over
// positions 1..10 with weights 11..2; remainder < 2 means check digit 0).
func IsValid(raw string) bool {
	digits := Normalize(raw)
	if len(digits) != Length {
		return false
	}

	// Sequences like 000.000.000-00 pass the checksum but are not issued.
	if strings.Count(digits, digits[:1]) == Length {
		return false
	}

	if int(digits[9]-'0') != checkDigit(digits, 9) {
		return false
	}
	return int(digits[10]-'0') == checkDigit(digits, 10)
}

// checkDigit computes the expected check digit over digits[:n] with
// descending weights starting at n+1.
func checkDigit(digits string, n int) int {
	sum := 0
	for i := 0; i < n; i++ {
		sum += int(digits[i]-'0') * (n + 1 - i)
	}
	rem := sum % 11
	if rem < 2 {
		return 0
	}
	return 11 - rem
}
