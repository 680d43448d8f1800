package dto

import (
	"rentacar/internal/domain/pricing"
	"rentacar/internal/domain/shared/money"
)

// MoneyDTO renders decimal amounts as fixed two-place strings.
type MoneyDTO struct {
	Net      string `json:"net"`
	VAT      string `json:"vat"`
	Gross    string `json:"gross"`
	VATRate  string `json:"vat_rate"`
	Currency string `json:"currency"`
}

func MapMoney(m money.Money) MoneyDTO {
	return MoneyDTO{
		Net:      m.Net.StringFixed(money.Scale),
		VAT:      m.VAT.StringFixed(money.Scale),
		Gross:    m.Gross().StringFixed(money.Scale),
		VATRate:  m.VATRate.String(),
		Currency: m.Currency,
	}
}

type QuoteDTO struct {
	CategoryCode string   `json:"category_code"`
	Days         int      `json:"days"`
	DailyRate    MoneyDTO `json:"daily_rate"`
	Total        MoneyDTO `json:"total"`
}

func MapQuote(q pricing.Quote) QuoteDTO {
	return QuoteDTO{
		CategoryCode: q.CategoryCode,
		Days:         q.Days,
		DailyRate:    MapMoney(q.DailyRate),
		Total:        MapMoney(q.Total),
	}
}
