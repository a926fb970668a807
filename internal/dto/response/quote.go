package response

import "github.com/shopspring/decimal"

type TierPricesResponse struct {
	Adult  decimal.Decimal `json:"adult"`
	Child  decimal.Decimal `json:"child"`
	Senior decimal.Decimal `json:"senior"`
}

type AvailabilityResponse struct {
	Date      string `json:"date"`
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
	Message   string `json:"message,omitempty"`
}

type ConvertedPriceResponse struct {
	Currency string          `json:"currency"`
	Rate     decimal.Decimal `json:"rate"`
	Pricing  PricingResponse `json:"pricing"`
}

type QuoteResponse struct {
	ActivityID   string                  `json:"activity_id"`
	ActivityName string                  `json:"activity_name"`
	Currency     string                  `json:"currency"`
	Prices       TierPricesResponse      `json:"prices"`
	Participants int                     `json:"participants"`
	Pricing      PricingResponse         `json:"pricing"`
	Availability *AvailabilityResponse   `json:"availability,omitempty"`
	Converted    *ConvertedPriceResponse `json:"converted,omitempty"`
}
