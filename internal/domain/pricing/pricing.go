package pricing

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"rentacar/internal/domain/shared/money"
	"rentacar/internal/domain/shared/period"
)

var (
	ErrNoPricingPolicyFound = errors.New("pricing: no pricing policy found")
	ErrInvalidPolicy        = errors.New("pricing: invalid policy")
)

// NoPolicyError names the lookup that found nothing.
type NoPolicyError struct {
	CategoryCode string
	LocationCode string
	PickupDate   time.Time
}

func (e *NoPolicyError) Error() string {
	msg := "pricing: no pricing policy found for category " + e.CategoryCode
	if e.LocationCode != "" {
		msg += " at " + e.LocationCode
	}
	if !e.PickupDate.IsZero() {
		msg += " on " + e.PickupDate.Format(period.DateLayout)
	}
	return msg
}

func (e *NoPolicyError) Is(target error) bool {
	return target == ErrNoPricingPolicyFound
}

// Quote is the price of one rental: daily rate times billable days.
type Quote struct {
	CategoryCode string
	Days         int
	DailyRate    money.Money
	Total        money.Money
}

func (q Quote) DailyRateNet() decimal.Decimal { return q.DailyRate.Net }
func (q Quote) TotalNet() decimal.Decimal     { return q.Total.Net }
func (q Quote) VATRate() decimal.Decimal      { return q.Total.VATRate }
func (q Quote) TotalVAT() decimal.Decimal     { return q.Total.VAT }
func (q Quote) TotalGross() decimal.Decimal   { return q.Total.Gross() }
func (q Quote) Currency() string              { return q.Total.Currency }

// Calculator is the pricing collaborator. Implementations may call remote
// services and must be treated as fallible.
type Calculator interface {
	CalculatePrice(ctx context.Context, categoryCode string, p period.BookingPeriod, pickupLocation string) (Quote, error)
}

// Policy is an immutable daily rate for a vehicle category, optionally tied to
// a pickup location, valid over [ValidFrom, ValidUntil]. Zero bounds are open.
type Policy struct {
	ID           string
	CategoryCode string
	LocationCode string
	DailyRate    money.Money
	ValidFrom    time.Time
	ValidUntil   time.Time
}

// NewPolicy validates and normalizes a policy.
func NewPolicy(id, category, location string, dailyRate money.Money, validFrom, validUntil time.Time) (Policy, error) {
	category = strings.ToUpper(strings.TrimSpace(category))
	if category == "" {
		return Policy{}, errors.Join(ErrInvalidPolicy, errors.New("category code required"))
	}
	if dailyRate.IsNegative() || dailyRate.Currency == "" {
		return Policy{}, errors.Join(ErrInvalidPolicy, errors.New("daily rate must be a non-negative amount"))
	}
	p := Policy{
		ID:           strings.TrimSpace(id),
		CategoryCode: category,
		LocationCode: strings.ToUpper(strings.TrimSpace(location)),
		DailyRate:    dailyRate,
		ValidFrom:    period.Date(validFrom),
		ValidUntil:   period.Date(validUntil),
	}
	if !p.ValidFrom.IsZero() && !p.ValidUntil.IsZero() && p.ValidUntil.Before(p.ValidFrom) {
		return Policy{}, errors.Join(ErrInvalidPolicy, errors.New("valid until precedes valid from"))
	}
	return p, nil
}

// ValidOn reports whether the policy applies to a pickup on day.
func (p Policy) ValidOn(day time.Time) bool {
	day = period.Date(day)
	if !p.ValidFrom.IsZero() && day.Before(p.ValidFrom) {
		return false
	}
	if !p.ValidUntil.IsZero() && day.After(p.ValidUntil) {
		return false
	}
	return true
}

// WithDailyRate returns a copy carrying a new rate.
func (p Policy) WithDailyRate(rate money.Money) Policy {
	p.DailyRate = rate
	return p
}

// Quote prices the period at this policy's daily rate.
func (p Policy) Quote(bp period.BookingPeriod) (Quote, error) {
	total, err := p.DailyRate.MultiplyByDays(bp.Days())
	if err != nil {
		return Quote{}, err
	}
	return Quote{
		CategoryCode: p.CategoryCode,
		Days:         bp.Days(),
		DailyRate:    p.DailyRate,
		Total:        total,
	}, nil
}

// PolicyTable selects the policy for a booking. A location-specific policy wins
// over a generic one; among equals, the most recent ValidFrom wins.
type PolicyTable []Policy

func (t PolicyTable) Select(category, location string, pickup time.Time) (Policy, error) {
	category = strings.ToUpper(strings.TrimSpace(category))
	location = strings.ToUpper(strings.TrimSpace(location))
	var (
		best  Policy
		found bool
	)
	for _, candidate := range t {
		if candidate.CategoryCode != category || !candidate.ValidOn(pickup) {
			continue
		}
		if candidate.LocationCode != "" && candidate.LocationCode != location {
			continue
		}
		if !found || better(candidate, best) {
			best, found = candidate, true
		}
	}
	if !found {
		return Policy{}, &NoPolicyError{CategoryCode: category, LocationCode: location, PickupDate: period.Date(pickup)}
	}
	return best, nil
}

func better(candidate, current Policy) bool {
	candSpecific := candidate.LocationCode != ""
	curSpecific := current.LocationCode != ""
	if candSpecific != curSpecific {
		return candSpecific
	}
	return candidate.ValidFrom.After(current.ValidFrom)
}
