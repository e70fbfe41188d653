package services

import (
	"fmt"
	"math"

	"github.com/rentalmarket/booking-backend/internal/models"
)

const (
	LineItemCodeHour                 = "line-item/hour"
	LineItemCodeFirstBookingDiscount = "line-item/first-booking-discount"
)

var lineItemParties = []string{"customer", "provider"}

// LineItemCalculator prices a booking. The orchestrator only threads isFirstBooking
// through; pricing policy lives entirely behind this interface.
type LineItemCalculator interface {
	Compute(listing *models.Listing, booking models.BookingData, isFirstBooking bool) ([]models.LineItem, error)
}

// LineItemConfig holds the pricing settings of the default calculator
type LineItemConfig struct {
	FirstBookingDiscountPercent int
}

// LineItemService is the default calculator: whole booked hours times the listing
// price, plus an optional first-booking discount
type LineItemService struct {
	config LineItemConfig
}

// NewLineItemService creates a new line item service
func NewLineItemService(config LineItemConfig) *LineItemService {
	return &LineItemService{config: config}
}

// Compute returns the line items for the booking
func (s *LineItemService) Compute(listing *models.Listing, booking models.BookingData, isFirstBooking bool) ([]models.LineItem, error) {
	if listing == nil || listing.Attributes == nil || listing.Attributes.Price == nil {
		return nil, models.NewValidationError("listing.attributes.price", "is required")
	}
	if booking.StartDate.IsZero() || booking.EndDate.IsZero() {
		return nil, models.NewValidationError("bookingData", "startDate and endDate are required")
	}
	if !booking.EndDate.After(booking.StartDate) {
		return nil, models.NewValidationError("bookingData", "endDate must be after startDate")
	}

	price := *listing.Attributes.Price
	hours := math.Ceil(booking.EndDate.Sub(booking.StartDate).Hours())

	seats := booking.Seats
	if seats < 1 {
		seats = 1
	}
	quantity := hours * float64(seats)

	lineItems := []models.LineItem{{
		Code:       LineItemCodeHour,
		UnitPrice:  price,
		Quantity:   &quantity,
		IncludeFor: lineItemParties,
	}}

	if isFirstBooking && s.config.FirstBookingDiscountPercent > 0 {
		percentage := -float64(s.config.FirstBookingDiscountPercent)
		lineItems = append(lineItems, models.LineItem{
			Code: LineItemCodeFirstBookingDiscount,
			UnitPrice: models.Money{
				Amount:   price.Amount * int64(quantity),
				Currency: price.Currency,
			},
			Percentage: &percentage,
			IncludeFor: lineItemParties,
		})
	}

	return lineItems, nil
}

// Total sums the line items in minor units
func Total(lineItems []models.LineItem) (models.Money, error) {
	var total models.Money
	for _, item := range lineItems {
		if total.Currency != "" && item.UnitPrice.Currency != total.Currency {
			return models.Money{}, fmt.Errorf("mixed currencies %s and %s", total.Currency, item.UnitPrice.Currency)
		}
		total.Currency = item.UnitPrice.Currency

		switch {
		case item.Quantity != nil:
			total.Amount += int64(math.Round(float64(item.UnitPrice.Amount) * *item.Quantity))
		case item.Percentage != nil:
			total.Amount += int64(math.Round(float64(item.UnitPrice.Amount) * *item.Percentage / 100))
		}
	}
	return total, nil
}
