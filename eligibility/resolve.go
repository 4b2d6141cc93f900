// Package eligibility decides whether a delivered order is still inside the
// return window. Resolve is pure: the phrasing of its verdict belongs to the
// dialogue generators.
package eligibility

import (
	"time"

	"github.com/tbxark/returnagent/types"
)

// Resolve computes the structured verdict for record under policy on today.
func Resolve(record *types.OrderRecord, policy *types.PolicyDocument, today time.Time) types.EligibilityVerdict {
	window := types.DefaultReturnWindowDays
	if policy != nil && policy.ReturnWindowDays > 0 {
		window = policy.ReturnWindowDays
	}
	verdict := types.EligibilityVerdict{
		Status:     types.StatusUnknown,
		WindowDays: window,
	}
	if record == nil || record.DeliveryDate == nil {
		return verdict
	}

	delivered := calendarDate(*record.DeliveryDate)
	days := DaysBetween(delivered, today)
	if days < 0 {
		days = 0
		verdict.FutureDelivery = true
	}
	windowEnds := delivered.AddDate(0, 0, window)

	verdict.DaysSinceDelivery = &days
	verdict.WindowEndsOn = &windowEnds
	if days <= window {
		verdict.Status = types.StatusEligible
	} else {
		verdict.Status = types.StatusNotEligible
	}
	return verdict
}

// DaysBetween returns the whole calendar days from a to b; negative when b is before a.
func DaysBetween(a, b time.Time) int {
	from := calendarDate(a)
	to := calendarDate(b)
	return int(to.Sub(from).Hours() / 24)
}

func calendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
