// Package validators registers custom govalidator tags shared by request types.
package validators

import (
	"regexp"

	"github.com/asaskevich/govalidator"
	uuid "github.com/satori/go.uuid"
)

func init() {
	govalidator.TagMap["msisdn"] = govalidator.Validator(IsMSISDN)
	govalidator.TagMap["currencycode"] = govalidator.Validator(IsCurrencyCode)
	govalidator.TagMap["paymenttype"] = govalidator.Validator(IsPaymentType)
	govalidator.CustomTypeTagMap.Set("requiredUUID", govalidator.CustomTypeValidator(IsRequiredUUID))
}

const (
	msisdn       string = "^[1-9][0-9]{10,14}$"
	currencyCode string = "^[A-Z]{3}$"
)

var (
	rxMSISDN       = regexp.MustCompile(msisdn)
	rxCurrencyCode = regexp.MustCompile(currencyCode)
)

// IsMSISDN returns true if the string str is a canonical MSISDN,
// digits only with the country calling code and no leading zero or plus
func IsMSISDN(str string) bool {
	return rxMSISDN.MatchString(str)
}

// IsCurrencyCode returns true if the string str is a 3-letter uppercase currency code
func IsCurrencyCode(str string) bool {
	return rxCurrencyCode.MatchString(str)
}

// IsPaymentType determines whether or not a given string is a recognized payment type
func IsPaymentType(str string) bool {
	switch str {
	case "product", "membership", "promotion":
		return true
	}
	return false
}

// IsRequiredUUID checks if the uuid is not empty
func IsRequiredUUID(i interface{}, context interface{}) bool {
	if v, ok := i.(uuid.UUID); ok {
		return !uuid.Equal(v, uuid.Nil)
	}
	return false
}
