package types

import "strings"

// ShippingInfo is the delivery contact captured at checkout.
type ShippingInfo struct {
	RecipientName string  `json:"recipientName" validate:"required,max=120"`
	Phone         string  `json:"phone" validate:"required,max=32"`
	Line1         string  `json:"line1" validate:"required,max=200"`
	Line2         *string `json:"line2,omitempty" validate:"omitempty,max=200"`
	City          string  `json:"city" validate:"required,max=100"`
	State         string  `json:"state,omitempty" validate:"max=100"`
	PostalCode    string  `json:"postalCode" validate:"required,max=20"`
	Country       string  `json:"country" validate:"required,len=2"`
}

// Normalize trims whitespace and upper-cases the country code.
func (s ShippingInfo) Normalize() ShippingInfo {
	out := s
	out.RecipientName = strings.TrimSpace(out.RecipientName)
	out.Phone = strings.TrimSpace(out.Phone)
	out.Line1 = strings.TrimSpace(out.Line1)
	out.City = strings.TrimSpace(out.City)
	out.State = strings.TrimSpace(out.State)
	out.PostalCode = strings.TrimSpace(out.PostalCode)
	out.Country = strings.ToUpper(strings.TrimSpace(out.Country))
	if out.Line2 != nil {
		trimmed := strings.TrimSpace(*out.Line2)
		if trimmed == "" {
			out.Line2 = nil
		} else {
			out.Line2 = &trimmed
		}
	}
	return out
}
