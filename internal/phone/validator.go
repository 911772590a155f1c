package phone

import (
	"fmt"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// Region selects which national rules Validate applies.
type Region string

const (
	RegionAuto          Region = ""
	RegionUzbekistan    Region = "uz"
	RegionRussia        Region = "ru"
	RegionInternational Region = "international"
)

// ParseRegion maps the request "type" field onto a Region. Unknown values
// fall back to RegionAuto.
func ParseRegion(s string) Region {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "uz", "uzbek", "uzbekistan":
		return RegionUzbekistan
	case "ru", "russian", "russia":
		return RegionRussia
	case "international", "intl":
		return RegionInternational
	}
	return RegionAuto
}

// uzOperators maps the two-digit Uzbek network code to the operator brand.
var uzOperators = map[string]string{
	"90": "Beeline",
	"91": "Beeline",
	"93": "Ucell",
	"94": "Ucell",
	"50": "Ucell",
	"95": "Uzmobile",
	"99": "Uzmobile",
	"77": "Uzmobile",
	"55": "Uzmobile",
	"97": "Mobiuz",
	"88": "Mobiuz",
	"33": "Humans",
	"98": "Perfectum",
	"20": "OQ",
}

// Validation is the outcome of a format check.
type Validation struct {
	IsValid   bool     `json:"isValid"`
	Formatted string   `json:"formatted"`
	Canonical string   `json:"canonical"`
	Region    string   `json:"region,omitempty"`
	Operator  string   `json:"operator,omitempty"`
	Mobile    bool     `json:"mobile"`
	Errors    []string `json:"errors"`
	Warnings  []string `json:"warnings"`
}

// Validator checks phone formats with libphonenumber metadata plus the
// operator-code tables for Uzbekistan and Russia.
type Validator struct{}

// NewValidator creates a Validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate is pure and synchronous.
func (v *Validator) Validate(raw string, region Region) Validation {
	res := Validation{Errors: []string{}, Warnings: []string{}}
	if strings.TrimSpace(raw) == "" {
		res.Errors = append(res.Errors, "phone number is required")
		return res
	}

	canonical, ok := Normalize(raw)
	res.Canonical = canonical
	res.Formatted = canonical
	if !ok {
		res.Errors = append(res.Errors, "unrecognized phone number format")
		return res
	}

	num, err := phonenumbers.Parse(canonical, "")
	if err != nil {
		res.Errors = append(res.Errors, "unable to parse phone number")
		return res
	}
	res.Formatted = phonenumbers.Format(num, phonenumbers.INTERNATIONAL)
	res.Region = phonenumbers.GetRegionCodeForNumber(num)
	if !phonenumbers.IsValidNumber(num) {
		res.Errors = append(res.Errors, "phone number is not valid")
		return res
	}

	nsn := phonenumbers.GetNationalSignificantNumber(num)
	switch region {
	case RegionUzbekistan:
		if res.Region != "UZ" {
			res.Errors = append(res.Errors, "expected an Uzbek number (+998)")
		}
	case RegionRussia:
		if res.Region != "RU" {
			res.Errors = append(res.Errors, "expected a Russian number (+7)")
		}
	}

	switch res.Region {
	case "UZ":
		if len(nsn) >= 2 {
			if op, known := uzOperators[nsn[:2]]; known {
				res.Operator = op
			} else {
				res.Warnings = append(res.Warnings, fmt.Sprintf("unknown operator code %s", nsn[:2]))
			}
		}
	case "RU":
		if nsn[0] != '9' {
			res.Warnings = append(res.Warnings, "Russian number is not in a mobile range (9xx)")
		}
	}

	res.Mobile = isMobileType(phonenumbers.GetNumberType(num))
	if !res.Mobile {
		res.Warnings = append(res.Warnings, "number does not look like a mobile number; SMS delivery may fail")
	}

	res.IsValid = len(res.Errors) == 0
	return res
}

// Info reports the ISO region and whether the number is in a mobile range.
// ok is false when the number cannot be parsed.
func Info(canonical string) (region string, mobile bool, ok bool) {
	num, err := phonenumbers.Parse(canonical, "")
	if err != nil {
		return "", false, false
	}
	return phonenumbers.GetRegionCodeForNumber(num), isMobileType(phonenumbers.GetNumberType(num)), true
}

func isMobileType(t phonenumbers.PhoneNumberType) bool {
	return t == phonenumbers.MOBILE || t == phonenumbers.FIXED_LINE_OR_MOBILE
}
