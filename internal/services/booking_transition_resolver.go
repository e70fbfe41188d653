package services

import (
	"time"

	"github.com/rentalmarket/booking-backend/internal/models"
)

// ResolverConfig holds the cancellation policy settings
type ResolverConfig struct {
	RefundWindowDays int
}

// DefaultResolverConfig returns the marketplace default refund window of two days
func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{RefundWindowDays: 2}
}

// BookingTransitionResolver picks the cancellation transition a customer cancel must take
type BookingTransitionResolver struct {
	config ResolverConfig
}

// NewBookingTransitionResolver creates a new resolver
func NewBookingTransitionResolver(config ResolverConfig) *BookingTransitionResolver {
	return &BookingTransitionResolver{config: config}
}

// RefundWindow returns the refund window as a duration
func (r *BookingTransitionResolver) RefundWindow() time.Duration {
	return time.Duration(r.config.RefundWindowDays) * 24 * time.Hour
}

// WithinRefundWindow reports whether a transaction created at createdAt is still
// refundable at now. The age is taken as an absolute value so that a createdAt
// slightly in the future (clock skew) still counts.
func (r *BookingTransitionResolver) WithinRefundWindow(createdAt, now time.Time) bool {
	elapsed := now.Sub(createdAt)
	if elapsed < 0 {
		elapsed = -elapsed
	}
	return elapsed <= r.RefundWindow()
}

// Resolve maps the last transition and the age of the transaction to the next
// transition.
//
//	accepted, within window  -> cancel-by-customer-after-accepted-with-refund
//	accepted                 -> cancel-by-customer-after-accepted
//	within window            -> cancel-by-customer-before-accepted-with-refund
//	otherwise                -> cancel-by-customer-before-accepted
func (r *BookingTransitionResolver) Resolve(lastTransition models.Transition, createdAt, now time.Time) models.Transition {
	accepted := lastTransition == models.TransitionAccept
	withinWindow := r.WithinRefundWindow(createdAt, now)

	switch {
	case accepted && withinWindow:
		return models.TransitionCancelAfterAcceptedWithRefund
	case accepted:
		return models.TransitionCancelAfterAccepted
	case withinWindow:
		return models.TransitionCancelBeforeAcceptedWithRefund
	default:
		return models.TransitionCancelBeforeAccepted
	}
}
