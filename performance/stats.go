package performance

import (
	"github.com/shopspring/decimal"
	"github.com/warp/rental-engine/rental"
)

// =============================================================================
// ROLE STATISTICS
// =============================================================================

var hundred = decimal.NewFromInt(100)

// CustomerStats are the figures of a customer-facing employee.
type CustomerStats struct {
	BookingsCreated   int          `json:"bookings_created"`
	BookingsCompleted int          `json:"bookings_completed"`
	BookingsCancelled int          `json:"bookings_cancelled"`
	BookingRevenue    rental.Money `json:"booking_revenue"`
	NewCustomers      int          `json:"new_customers"`
	CompletionRate    float64      `json:"completion_rate"`
}

// PropertyStats are the figures of a property-facing employee.
type PropertyStats struct {
	NewOwners   int `json:"new_owners"`
	NewProjects int `json:"new_projects"`
	NewUnits    int `json:"new_units"`
}

// RoleStats holds the stats of exactly one domain. Administrative employees
// have neither.
type RoleStats struct {
	Domain   rental.RoleDomain `json:"domain"`
	Customer *CustomerStats    `json:"customer_stats,omitempty"`
	Property *PropertyStats    `json:"property_stats,omitempty"`
}

// CompletionRate is completed/(completed+cancelled)*100 rounded to 2 places,
// or 0 when nothing has finished.
func CompletionRate(completed, cancelled int) float64 {
	total := completed + cancelled
	if total <= 0 {
		return 0
	}
	rate := decimal.NewFromInt(int64(completed)).Mul(hundred).Div(decimal.NewFromInt(int64(total)))
	return rate.Round(2).InexactFloat64()
}

// Achievement scores stats against target on a 0-100 scale. Only the goals of
// the stats' domain count; each ratio is capped at 100 before averaging.
func Achievement(target rental.Target, stats RoleStats) float64 {
	var ratios []decimal.Decimal
	add := func(actual, goal decimal.Decimal) {
		if !goal.IsPositive() {
			return
		}
		ratio := actual.Mul(hundred).Div(goal)
		if ratio.GreaterThan(hundred) {
			ratio = hundred
		}
		ratios = append(ratios, ratio)
	}
	count := func(n int) decimal.Decimal { return decimal.NewFromInt(int64(n)) }

	switch {
	case stats.Customer != nil:
		c := stats.Customer
		add(count(c.BookingsCreated), count(target.TargetBookings))
		add(c.BookingRevenue.Amount, target.TargetBookingRevenue.Amount)
		add(count(c.NewCustomers), count(target.TargetNewCustomers))
		add(decimal.NewFromFloat(c.CompletionRate), target.TargetCompletionRate)
	case stats.Property != nil:
		p := stats.Property
		add(count(p.NewOwners), count(target.TargetNewOwners))
		add(count(p.NewProjects), count(target.TargetNewProjects))
		add(count(p.NewUnits), count(target.TargetNewUnits))
	}

	if len(ratios) == 0 {
		return 0
	}
	sum := decimal.Zero
	for _, r := range ratios {
		sum = sum.Add(r)
	}
	return sum.Div(count(len(ratios))).Round(2).InexactFloat64()
}
