package gateway

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// countrySpec describes the numbering plan for one currency's country.
type countrySpec struct {
	callingCode string
	trunkPrefix string
	nationalLen int
	exponent    int32
	operators   map[string]string
}

var countries = map[string]countrySpec{
	"UGX": {
		callingCode: "256",
		trunkPrefix: "0",
		nationalLen: 9,
		exponent:    0,
		operators: map[string]string{
			"70": "airtel", "74": "airtel", "75": "airtel",
			"76": "mtn", "77": "mtn", "78": "mtn",
		},
	},
	"KES": {
		callingCode: "254",
		trunkPrefix: "0",
		nationalLen: 9,
		exponent:    2,
		operators: map[string]string{
			"70": "safaricom", "71": "safaricom", "72": "safaricom", "79": "safaricom",
			"73": "airtel", "78": "airtel",
		},
	},
	"TZS": {
		callingCode: "255",
		trunkPrefix: "0",
		nationalLen: 9,
		exponent:    2,
		operators: map[string]string{
			"74": "vodacom", "75": "vodacom", "76": "vodacom",
			"68": "airtel", "69": "airtel", "78": "airtel",
			"65": "tigo", "67": "tigo", "71": "tigo",
		},
	},
}

// NormalizePhone converts a raw phone number into E.164 for the currency's
// country. Numbers whose national part has the wrong length are rejected,
// never silently coerced.
func NormalizePhone(raw, currency string) (string, error) {
	spec, ok := countries[currency]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownCurrency, currency)
	}

	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	number := digits.String()
	if number == "" {
		return "", fmt.Errorf("%w: no digits in %q", ErrInvalidPhone, raw)
	}

	national := number
	switch {
	case strings.HasPrefix(number, spec.callingCode):
		national = number[len(spec.callingCode):]
	case spec.trunkPrefix != "" && strings.HasPrefix(number, spec.trunkPrefix):
		national = number[len(spec.trunkPrefix):]
	}

	if len(national) != spec.nationalLen {
		return "", fmt.Errorf("%w: national number %q has %d digits, want %d",
			ErrInvalidPhone, national, len(national), spec.nationalLen)
	}

	return "+" + spec.callingCode + national, nil
}

// ResolveOperator returns the network operator for a normalized number.
// A caller-supplied operator always wins; otherwise it is inferred from the
// number's prefix range, falling back to empty when the prefix is unknown.
func ResolveOperator(supplied, msisdn, currency string) string {
	if supplied != "" {
		return supplied
	}
	spec, ok := countries[currency]
	if !ok {
		return ""
	}
	national := strings.TrimPrefix(msisdn, "+"+spec.callingCode)
	if len(national) < 2 {
		return ""
	}
	return spec.operators[national[:2]]
}

// MajorAmount converts minor units into the decimal major-unit amount the
// gateway expects. UGX has no minor subdivision; KES and TZS use cents.
func MajorAmount(minor int64, currency string) (decimal.Decimal, error) {
	spec, ok := countries[currency]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnknownCurrency, currency)
	}
	return decimal.New(minor, -spec.exponent), nil
}

// SupportedCurrency reports whether the gateway serves the currency.
func SupportedCurrency(currency string) bool {
	_, ok := countries[currency]
	return ok
}
