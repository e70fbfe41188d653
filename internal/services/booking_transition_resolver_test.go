package services

import (
	"testing"
	"time"

	"github.com/rentalmarket/booking-backend/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestResolve_DecisionTable(t *testing.T) {
	resolver := NewBookingTransitionResolver(DefaultResolverConfig())
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	day := 24 * time.Hour

	tests := []struct {
		name           string
		lastTransition models.Transition
		createdAt      time.Time
		want           models.Transition
	}{
		{"accepted one day ago", models.TransitionAccept, now.Add(-1 * day), models.TransitionCancelAfterAcceptedWithRefund},
		{"accepted three days ago", models.TransitionAccept, now.Add(-3 * day), models.TransitionCancelAfterAccepted},
		{"requested one day ago", models.TransitionRequest, now.Add(-1 * day), models.TransitionCancelBeforeAcceptedWithRefund},
		{"requested five days ago", models.TransitionRequest, now.Add(-5 * day), models.TransitionCancelBeforeAccepted},
		{"accepted exactly at window", models.TransitionAccept, now.Add(-2 * day), models.TransitionCancelAfterAcceptedWithRefund},
		{"accepted just past window", models.TransitionAccept, now.Add(-2*day - time.Second), models.TransitionCancelAfterAccepted},
		{"clock skew into the future", models.TransitionAccept, now.Add(time.Hour), models.TransitionCancelAfterAcceptedWithRefund},
		{"far future counts as elapsed", models.TransitionRequest, now.Add(4 * day), models.TransitionCancelBeforeAccepted},
		{"unknown transition is not accepted", models.Transition("transition/expire"), now, models.TransitionCancelBeforeAcceptedWithRefund},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := resolver.Resolve(tc.lastTransition, tc.createdAt, now)
			assert.Equal(t, tc.want, got)
			assert.True(t, got.IsCustomerCancel())
		})
	}
}

func TestResolve_CustomWindow(t *testing.T) {
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	createdAt := now.Add(-36 * time.Hour)

	strict := NewBookingTransitionResolver(ResolverConfig{RefundWindowDays: 1})
	assert.Equal(t, models.TransitionCancelAfterAccepted, strict.Resolve(models.TransitionAccept, createdAt, now))

	none := NewBookingTransitionResolver(ResolverConfig{RefundWindowDays: 0})
	assert.Equal(t, models.TransitionCancelBeforeAcceptedWithRefund, none.Resolve(models.TransitionRequest, now, now))
	assert.False(t, none.Resolve(models.TransitionRequest, now.Add(-time.Minute), now).WithRefund())
}

func TestWithinRefundWindow(t *testing.T) {
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	resolver := NewBookingTransitionResolver(DefaultResolverConfig())

	assert.True(t, resolver.WithinRefundWindow(now.Add(-48*time.Hour), now))
	assert.False(t, resolver.WithinRefundWindow(now.Add(-48*time.Hour-time.Second), now))
	assert.True(t, resolver.WithinRefundWindow(now.Add(time.Hour), now))
}
