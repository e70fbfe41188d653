package services

import (
	"github.com/rentalmarket/booking-backend/internal/models"
)

// FirstBookingPatch is a profile metadata delta for the firstTransactionId marker
type FirstBookingPatch struct {
	CustomerID         models.EntityID
	FirstTransactionID models.NullableID
	Changed            bool // false when applying the patch leaves the field as it was
}

// Metadata returns the partial metadata document sent to the profile update API
func (p FirstBookingPatch) Metadata() models.ProfileMetadata {
	return models.ProfileMetadata{FirstTransactionID: p.FirstTransactionID}
}

// FirstBookingFlagTracker keeps the customer's firstTransactionId consistent across
// initiation and finalization. It only computes patches; writing them, and deciding
// what to do when a write fails, belongs to the caller.
type FirstBookingFlagTracker struct{}

// NewFirstBookingFlagTracker creates a new tracker
func NewFirstBookingFlagTracker() *FirstBookingFlagTracker {
	return &FirstBookingFlagTracker{}
}

// OnInitiate returns the patch recording newTransactionID as the customer's first
// booking. isFirstBooking is observed by the caller before initiating; speculative
// initiations never record anything.
func (t *FirstBookingFlagTracker) OnInitiate(customerID models.EntityID, isFirstBooking, isSpeculative bool, newTransactionID models.EntityID) (*FirstBookingPatch, bool) {
	if !isFirstBooking || isSpeculative || newTransactionID.IsZero() {
		return nil, false
	}

	return &FirstBookingPatch{
		CustomerID:         customerID,
		FirstTransactionID: models.NewNullableID(newTransactionID.String()),
		Changed:            true,
	}, true
}

// OnFinalize is a compare-and-clear: the marker is cleared only when it still points
// at the finalized transaction. Repeating the call, or calling it with its own result,
// is a no-op.
func (t *FirstBookingFlagTracker) OnFinalize(customerID, finalizedTransactionID models.EntityID, currentFirstTransactionID models.NullableID) FirstBookingPatch {
	next := currentFirstTransactionID
	if !next.Present {
		next = models.NullID()
	}

	changed := false
	if currentFirstTransactionID.Equals(finalizedTransactionID.String()) {
		next = models.NullID()
		changed = true
	}

	return FirstBookingPatch{
		CustomerID:         customerID,
		FirstTransactionID: next,
		Changed:            changed,
	}
}
