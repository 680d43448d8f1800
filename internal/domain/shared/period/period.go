package period

import (
	"encoding/json"
	"errors"
	"time"
)

// MaxRentalDays caps the billable length of a single booking.
const MaxRentalDays = 90

// DateLayout is the calendar-date wire format used for pickup and return dates.
const DateLayout = "2006-01-02"

const (
	ReasonPickupInPast    = "pickup date cannot be in the past"
	ReasonReturnNotAfter  = "return date must be after pickup date"
	ReasonTooLong         = "rental period cannot exceed 90 days"
	ReasonMissingEndpoint = "pickup and return dates are required"
)

var ErrInvalidPeriod = errors.New("period: invalid booking period")

// InvalidPeriodError carries the human-readable reason a period was rejected.
type InvalidPeriodError struct {
	Reason string
}

func (e *InvalidPeriodError) Error() string {
	return "period: " + e.Reason
}

func (e *InvalidPeriodError) Is(target error) bool {
	return target == ErrInvalidPeriod
}

// BookingPeriod is a validated pickup/return pair of calendar dates (UTC midnight).
// Both endpoints are billable days.
type BookingPeriod struct {
	pickup time.Time
	ret    time.Time
}

// Of validates the pair against the current date.
func Of(pickup, ret time.Time) (BookingPeriod, error) {
	return New(pickup, ret, time.Now())
}

// New validates the pair against the supplied clock reading.
func New(pickup, ret, now time.Time) (BookingPeriod, error) {
	if pickup.IsZero() || ret.IsZero() {
		return BookingPeriod{}, &InvalidPeriodError{Reason: ReasonMissingEndpoint}
	}
	p := BookingPeriod{pickup: Date(pickup), ret: Date(ret)}
	if p.pickup.Before(Date(now)) {
		return BookingPeriod{}, &InvalidPeriodError{Reason: ReasonPickupInPast}
	}
	if !p.ret.After(p.pickup) {
		return BookingPeriod{}, &InvalidPeriodError{Reason: ReasonReturnNotAfter}
	}
	if p.Days() > MaxRentalDays {
		return BookingPeriod{}, &InvalidPeriodError{Reason: ReasonTooLong}
	}
	return p, nil
}

// Restore rebuilds a period loaded from storage. Creation-time rules are not
// re-checked since a persisted pickup date may legitimately lie in the past.
func Restore(pickup, ret time.Time) BookingPeriod {
	return BookingPeriod{pickup: Date(pickup), ret: Date(ret)}
}

// Parse reads two DateLayout strings and validates them against now.
func Parse(pickup, ret string, now time.Time) (BookingPeriod, error) {
	p, err := time.Parse(DateLayout, pickup)
	if err != nil {
		return BookingPeriod{}, &InvalidPeriodError{Reason: "invalid pickup date: " + pickup}
	}
	r, err := time.Parse(DateLayout, ret)
	if err != nil {
		return BookingPeriod{}, &InvalidPeriodError{Reason: "invalid return date: " + ret}
	}
	return New(p, r, now)
}

func (p BookingPeriod) PickupDate() time.Time { return p.pickup }
func (p BookingPeriod) ReturnDate() time.Time { return p.ret }

// Days counts billable days, inclusive of pickup and return.
func (p BookingPeriod) Days() int {
	return int(p.ret.Sub(p.pickup).Hours()/24) + 1
}

// OverlapsWith reports whether both periods share at least one calendar day.
func (p BookingPeriod) OverlapsWith(other BookingPeriod) bool {
	return !p.pickup.After(other.ret) && !p.ret.Before(other.pickup)
}

// HasStarted reports whether the pickup date has been reached on now's calendar day.
func (p BookingPeriod) HasStarted(now time.Time) bool {
	return !Date(now).Before(p.pickup)
}

func (p BookingPeriod) IsZero() bool {
	return p.pickup.IsZero() && p.ret.IsZero()
}

func (p BookingPeriod) String() string {
	return p.pickup.Format(DateLayout) + ".." + p.ret.Format(DateLayout)
}

type periodJSON struct {
	PickupDate string `json:"pickup_date"`
	ReturnDate string `json:"return_date"`
}

func (p BookingPeriod) MarshalJSON() ([]byte, error) {
	if p.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(periodJSON{PickupDate: p.pickup.Format(DateLayout), ReturnDate: p.ret.Format(DateLayout)})
}

// UnmarshalJSON restores without validation, like Restore.
func (p *BookingPeriod) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*p = BookingPeriod{}
		return nil
	}
	var raw periodJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	pickup, err := time.Parse(DateLayout, raw.PickupDate)
	if err != nil {
		return &InvalidPeriodError{Reason: "invalid pickup date: " + raw.PickupDate}
	}
	ret, err := time.Parse(DateLayout, raw.ReturnDate)
	if err != nil {
		return &InvalidPeriodError{Reason: "invalid return date: " + raw.ReturnDate}
	}
	*p = Restore(pickup, ret)
	return nil
}

// Date returns midnight UTC of the calendar day t falls on in its own location.
func Date(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
