package chat

import (
	"time"

	"food-order-service/models"
)

// GraceDeadline is the moment chat closes for an order that reached a final
// status at finalizedAt: the restaurant's closing time on the following
// calendar day, or the end of that day when no closing time is configured.
func GraceDeadline(finalizedAt time.Time, r models.RestaurantConfig) time.Time {
	loc := r.Location()
	f := finalizedAt.In(loc)
	y, m, d := f.Date()
	if hour, minute, ok := r.Closing(); ok {
		return time.Date(y, m, d+1, hour, minute, 0, 0, loc)
	}
	return time.Date(y, m, d+2, 0, 0, 0, 0, loc)
}

// Open reports whether messages may still be posted to the order's thread.
func Open(o *models.Order, r models.RestaurantConfig, now time.Time) bool {
	if !o.AllowChat {
		return false
	}
	if !o.Status.Final() {
		return true
	}
	return now.Before(GraceDeadline(finalizedAt(o), r))
}

// Expired reports whether the grace period is over while the order still
// has chat enabled, i.e. whether allowChat should be flipped off.
func Expired(o *models.Order, r models.RestaurantConfig, now time.Time) bool {
	return o.AllowChat && o.Status.Final() && !now.Before(GraceDeadline(finalizedAt(o), r))
}

func finalizedAt(o *models.Order) time.Time {
	if o.FinalizedAt != nil {
		return *o.FinalizedAt
	}
	return o.UpdatedAt
}
