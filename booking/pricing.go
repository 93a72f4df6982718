package booking

import (
	"github.com/warp/rental-engine/calendar"
	"github.com/warp/rental-engine/rental"
)

// =============================================================================
// PRICING - Per-night weekday/weekend rates
// =============================================================================

// Pricing computes stay prices from a unit's two nightly rates.
type Pricing struct {
	Weekend  calendar.Weekend
	Currency rental.Currency
}

// DefaultPricing prices Friday and Saturday nights at the weekend rate.
func DefaultPricing(currency rental.Currency) Pricing {
	return Pricing{Weekend: calendar.GulfWeekend, Currency: currency}
}

// IsWeekendNight reports whether the night starting on d is priced at the
// weekend rate. An unset weekend falls back to calendar.GulfWeekend.
func (p Pricing) IsWeekendNight(d calendar.Date) bool {
	if p.Weekend == 0 {
		return calendar.IsWeekendDay(d)
	}
	return p.Weekend.Contains(d.Weekday())
}

// Quote is the breakdown behind a computed price.
type Quote struct {
	Nights        int          `json:"nights"`
	WeekdayNights int          `json:"weekday_nights"`
	WeekendNights int          `json:"weekend_nights"`
	WeekdayRate   rental.Money `json:"weekday_rate"`
	WeekendRate   rental.Money `json:"weekend_rate"`
	Total         rental.Money `json:"total"`
}

// Quote walks every night of [checkIn, checkOut). A night is classified by
// the date it starts on. Zero nights quote zero; checkOut before checkIn is a
// validation error.
func (p Pricing) Quote(unit rental.Unit, checkIn, checkOut calendar.Date) (Quote, error) {
	if checkIn.IsZero() || checkOut.IsZero() {
		return Quote{}, &rental.ValidationError{Field: "check_in_date", Message: "check-in and check-out dates are required"}
	}
	if checkOut.Before(checkIn) {
		return Quote{}, &rental.ValidationError{Field: "check_out_date", Message: "check-out must not be before check-in"}
	}

	q := Quote{
		WeekdayRate: rental.NewMoney(unit.WeekdayRate.Amount, p.Currency),
		WeekendRate: rental.NewMoney(unit.WeekendRate.Amount, p.Currency),
		Total:       rental.ZeroMoney(p.Currency),
	}
	calendar.NewInterval(checkIn, checkOut).EachNight(func(night calendar.Date) {
		q.Nights++
		if p.IsWeekendNight(night) {
			q.WeekendNights++
			q.Total = q.Total.Add(q.WeekendRate)
		} else {
			q.WeekdayNights++
			q.Total = q.Total.Add(q.WeekdayRate)
		}
	})
	return q, nil
}

// ComputePrice returns the total of Quote.
func (p Pricing) ComputePrice(unit rental.Unit, checkIn, checkOut calendar.Date) (rental.Money, error) {
	q, err := p.Quote(unit, checkIn, checkOut)
	if err != nil {
		return rental.Money{}, err
	}
	return q.Total, nil
}
