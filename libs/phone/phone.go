// Package phone normalizes user-entered mobile numbers into canonical MSISDNs
// and maps national prefixes onto mobile-money providers.
package phone

import (
	"fmt"
	"strings"
)

// Validation failure codes
const (
	CodeInvalidLength      = "INVALID_LENGTH"
	CodeInvalidPrefix      = "INVALID_PREFIX"
	CodeUnsupportedCountry = "UNSUPPORTED_COUNTRY"
	CodeProviderNotFound   = "PROVIDER_NOT_FOUND"
)

// ValidationError is a structured phone validation failure
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("phone: %s: %s", e.Code, e.Message)
}

type countryPlan struct {
	callingCode string
	nsnLength   int
	// provider keyed by the leading two digits of the national significant number
	providers map[string]string
}

var plans = map[string]countryPlan{
	"ZMB": {
		callingCode: "260",
		nsnLength:   9,
		providers: map[string]string{
			"96": "MTN_MOMO_ZMB",
			"76": "MTN_MOMO_ZMB",
			"97": "AIRTEL_OAPI_ZMB",
			"77": "AIRTEL_OAPI_ZMB",
			"95": "ZAMTEL_MOMO_ZMB",
			"75": "ZAMTEL_MOMO_ZMB",
		},
	},
}

func stripNonDigits(raw string) string {
	var b strings.Builder
	for _, c := range raw {
		if c >= '0' && c <= '9' {
			b.WriteByte(byte(c))
		}
	}
	return b.String()
}

// Normalize sanitizes raw into a canonical MSISDN for the given country.
// The result is digits only with the country calling code prepended.
func Normalize(raw string, country string) (string, error) {
	plan, ok := plans[country]
	if !ok {
		return "", &ValidationError{
			Code:    CodeUnsupportedCountry,
			Message: fmt.Sprintf("country %s is not supported", country),
		}
	}

	digits := stripNonDigits(raw)

	var nsn string
	switch {
	case len(digits) == plan.nsnLength:
		nsn = digits
	case len(digits) == plan.nsnLength+1 && strings.HasPrefix(digits, "0"):
		// national format with a trunk zero
		nsn = digits[1:]
	case len(digits) == plan.nsnLength+len(plan.callingCode) && strings.HasPrefix(digits, plan.callingCode):
		nsn = digits[len(plan.callingCode):]
	default:
		return "", &ValidationError{
			Code:    CodeInvalidLength,
			Message: fmt.Sprintf("expected a %d digit national number", plan.nsnLength),
		}
	}

	if _, ok := plan.providers[nsn[:2]]; !ok {
		return "", &ValidationError{
			Code:    CodeInvalidPrefix,
			Message: fmt.Sprintf("prefix %s is not a known mobile network", nsn[:2]),
		}
	}

	return plan.callingCode + nsn, nil
}

// PredictProvider maps a canonical MSISDN onto a provider code without any I/O.
// It is a local fallback for the gateway's predict-provider operation.
func PredictProvider(msisdn string, country string) (string, error) {
	plan, ok := plans[country]
	if !ok {
		return "", &ValidationError{
			Code:    CodeUnsupportedCountry,
			Message: fmt.Sprintf("country %s is not supported", country),
		}
	}
	if len(msisdn) != plan.nsnLength+len(plan.callingCode) || !strings.HasPrefix(msisdn, plan.callingCode) {
		return "", &ValidationError{
			Code:    CodeInvalidLength,
			Message: "msisdn is not in canonical form",
		}
	}
	nsn := msisdn[len(plan.callingCode):]
	provider, ok := plan.providers[nsn[:2]]
	if !ok {
		return "", &ValidationError{
			Code:    CodeProviderNotFound,
			Message: fmt.Sprintf("no provider serves prefix %s", nsn[:2]),
		}
	}
	return provider, nil
}
