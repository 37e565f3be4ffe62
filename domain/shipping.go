package domain

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// MinPhoneLength is the shortest phone number accepted for delivery.
const MinPhoneLength = 10

type ShippingDraft struct {
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
	PinCode string `json:"pinCode"`
	PhoneNo string `json:"phoneNo"`
	Country string `json:"country"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) String() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate reports every field that keeps the draft from being complete.
// A nil result means the draft may be used for an order.
func (d ShippingDraft) Validate() []FieldError {
	var errs []FieldError
	required := []struct {
		field string
		value string
	}{
		{"address", d.Address},
		{"city", d.City},
		{"state", d.State},
		{"pinCode", d.PinCode},
		{"phoneNo", d.PhoneNo},
		{"country", d.Country},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			errs = append(errs, FieldError{Field: r.field, Message: "is required"})
		}
	}

	phone := strings.TrimSpace(d.PhoneNo)
	if phone != "" && utf8.RuneCountInString(phone) < MinPhoneLength {
		errs = append(errs, FieldError{
			Field:   "phoneNo",
			Message: fmt.Sprintf("must be at least %d characters", MinPhoneLength),
		})
	}
	return errs
}

func (d ShippingDraft) IsComplete() bool {
	return len(d.Validate()) == 0
}
