package service

import (
	"math"
	"time"

	"github.com/podworks/pod-access-service/internal/domain"
)

// PromoFreeMinutes is the allowance deducted from a session's billable
// time when promotional pricing is enabled.
const PromoFreeMinutes = 10.0

// SessionCost returns the price of a session in major currency units.
// Open sessions are priced up to now; closed sessions up to their end
// time. With promo enabled the first PromoFreeMinutes are free and the
// result never goes below zero.
func SessionCost(pod *domain.Pod, session *domain.Session, promo bool, now time.Time) float64 {
	end := now
	if session.EndTime != nil {
		end = *session.EndTime
	}

	minutes := end.Sub(session.StartTime).Minutes()
	if minutes < 0 {
		minutes = 0
	}
	if promo {
		minutes -= PromoFreeMinutes
		if minutes < 0 {
			minutes = 0
		}
	}

	return minutes * pod.PricePerMinute
}

// CostInPence converts a major-unit cost to integer minor units for the
// payment gateway.
func CostInPence(cost float64) int64 {
	return int64(math.Round(cost * 100))
}
