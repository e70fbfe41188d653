package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Transition is a named lifecycle step of a marketplace transaction
type Transition string

const (
	TransitionRequest Transition = "transition/request"
	TransitionAccept  Transition = "transition/accept"

	TransitionCancelAfterAcceptedWithRefund  Transition = "transition/cancel-by-customer-after-accepted-with-refund"
	TransitionCancelAfterAccepted            Transition = "transition/cancel-by-customer-after-accepted"
	TransitionCancelBeforeAcceptedWithRefund Transition = "transition/cancel-by-customer-before-accepted-with-refund"
	TransitionCancelBeforeAccepted           Transition = "transition/cancel-by-customer-before-accepted"
)

// String returns the string representation of Transition
func (t Transition) String() string {
	return string(t)
}

// IsCustomerCancel checks if the transition is one of the customer cancellation steps
func (t Transition) IsCustomerCancel() bool {
	switch t {
	case TransitionCancelAfterAcceptedWithRefund, TransitionCancelAfterAccepted,
		TransitionCancelBeforeAcceptedWithRefund, TransitionCancelBeforeAccepted:
		return true
	}
	return false
}

// WithRefund checks if the transition refunds the customer
func (t Transition) WithRefund() bool {
	return t == TransitionCancelAfterAcceptedWithRefund || t == TransitionCancelBeforeAcceptedWithRefund
}

// ProfileMetadata is the customer-profile metadata this engine reads and writes
type ProfileMetadata struct {
	FirstTransactionID NullableID `json:"firstTransactionId"`
}

// Profile is the marketplace user profile
type Profile struct {
	DisplayName string           `json:"displayName,omitempty"`
	Metadata    *ProfileMetadata `json:"metadata,omitempty"`
}

// UserAttributes holds the user attributes relevant here
type UserAttributes struct {
	Profile *Profile `json:"profile,omitempty"`
}

// User is a marketplace user resource (customer or current user)
type User struct {
	ID         EntityID        `json:"id"`
	Attributes *UserAttributes `json:"attributes,omitempty"`
}

// FirstTransactionID walks attributes.profile.metadata.firstTransactionId. Missing
// intermediate objects or a missing key are contract errors.
func (u *User) FirstTransactionID() (NullableID, error) {
	if u == nil {
		return NullableID{}, NewValidationError("customer", "is required")
	}
	if u.Attributes == nil || u.Attributes.Profile == nil || u.Attributes.Profile.Metadata == nil {
		return NullableID{}, NewValidationError("customer.attributes.profile.metadata", "is required")
	}
	value := u.Attributes.Profile.Metadata.FirstTransactionID
	if !value.Present {
		return NullableID{}, NewValidationError("customer.attributes.profile.metadata.firstTransactionId", "is required")
	}
	return value, nil
}

// StoredFirstTransactionID returns the marker of a profile loaded from the
// marketplace. A profile without metadata has no marker, which reads as null.
func (u *User) StoredFirstTransactionID() NullableID {
	if u == nil || u.Attributes == nil || u.Attributes.Profile == nil || u.Attributes.Profile.Metadata == nil {
		return NullID()
	}
	if !u.Attributes.Profile.Metadata.FirstTransactionID.Present {
		return NullID()
	}
	return u.Attributes.Profile.Metadata.FirstTransactionID
}

// HasFirstTransaction reports whether the profile already records a first booking.
// Profiles without metadata simply have not booked yet.
func (u *User) HasFirstTransaction() bool {
	if u == nil || u.Attributes == nil || u.Attributes.Profile == nil || u.Attributes.Profile.Metadata == nil {
		return false
	}
	return u.Attributes.Profile.Metadata.FirstTransactionID.Valid
}

// TransactionAttributes holds the transaction attributes the resolver needs
type TransactionAttributes struct {
	LastTransition Transition `json:"lastTransition"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// Transaction is a marketplace transaction as sent by the client
type Transaction struct {
	ID         EntityID               `json:"id"`
	Customer   *User                  `json:"customer,omitempty"`
	Attributes *TransactionAttributes `json:"attributes,omitempty"`
}

// CancelByCustomerRequest is the body of the cancel-by-customer surface
type CancelByCustomerRequest struct {
	Transaction *Transaction `json:"transaction" binding:"required"`
}

// Validate checks that every nested field the cancellation needs is present
func (r *CancelByCustomerRequest) Validate() error {
	tx := r.Transaction
	if tx == nil {
		return NewValidationError("transaction", "is required")
	}
	if tx.ID.IsZero() {
		return NewValidationError("transaction.id", "is required")
	}
	if tx.Attributes == nil {
		return NewValidationError("transaction.attributes", "is required")
	}
	if tx.Attributes.LastTransition == "" {
		return NewValidationError("transaction.attributes.lastTransition", "is required")
	}
	if tx.Attributes.CreatedAt.IsZero() {
		return NewValidationError("transaction.attributes.createdAt", "is required")
	}
	if tx.Customer == nil || tx.Customer.ID.IsZero() {
		return NewValidationError("transaction.customer.id", "is required")
	}
	if _, err := tx.Customer.FirstTransactionID(); err != nil {
		return err
	}
	return nil
}

// UpdateFirstBookingRequest is the body of the update-first-booking surface
type UpdateFirstBookingRequest struct {
	ID       EntityID `json:"id"`
	Customer *User    `json:"customer" binding:"required"`
}

// Validate checks the id and the customer metadata chain
func (r *UpdateFirstBookingRequest) Validate() error {
	if r.ID.IsZero() {
		return NewValidationError("id", "is required")
	}
	if r.Customer == nil || r.Customer.ID.IsZero() {
		return NewValidationError("customer.id", "is required")
	}
	if _, err := r.Customer.FirstTransactionID(); err != nil {
		return err
	}
	return nil
}

// BookingData is the booking window the customer asks for
type BookingData struct {
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
	Seats     int       `json:"seats,omitempty"`
}

// InitiateRequest is the body of the initiate surface. bodyParams is kept raw so that
// fields this service does not know about reach the marketplace untouched.
type InitiateRequest struct {
	IsSpeculative bool                       `json:"isSpeculative"`
	BookingData   BookingData                `json:"bookingData"`
	BodyParams    map[string]json.RawMessage `json:"bodyParams" binding:"required"`
	QueryParams   map[string]interface{}     `json:"queryParams"`
}

// Validate checks that bodyParams.params.listingId is present
func (r *InitiateRequest) Validate() error {
	if _, err := r.ListingID(); err != nil {
		return err
	}
	if !r.BookingData.StartDate.IsZero() && !r.BookingData.EndDate.After(r.BookingData.StartDate) {
		return NewValidationError("bookingData", "endDate must be after startDate")
	}
	return nil
}

// params decodes bodyParams.params
func (r *InitiateRequest) params() (map[string]json.RawMessage, error) {
	raw, ok := r.BodyParams["params"]
	if !ok {
		return nil, NewValidationError("bodyParams.params", "is required")
	}
	var params map[string]json.RawMessage
	if err := json.Unmarshal(raw, &params); err != nil || params == nil {
		return nil, NewValidationError("bodyParams.params", "must be an object")
	}
	return params, nil
}

// ListingID extracts bodyParams.params.listingId
func (r *InitiateRequest) ListingID() (EntityID, error) {
	params, err := r.params()
	if err != nil {
		return EntityID{}, err
	}
	raw, ok := params["listingId"]
	if !ok {
		return EntityID{}, NewValidationError("bodyParams.params.listingId", "is required")
	}
	var id EntityID
	if err := json.Unmarshal(raw, &id); err != nil || id.IsZero() {
		return EntityID{}, NewValidationError("bodyParams.params.listingId", "must be a valid id")
	}
	return id, nil
}

// BodyWithLineItems returns bodyParams with params.lineItems set, leaving every other
// field as the client sent it.
func (r *InitiateRequest) BodyWithLineItems(lineItems []LineItem) (map[string]interface{}, error) {
	params, err := r.params()
	if err != nil {
		return nil, err
	}

	encodedItems, err := json.Marshal(lineItems)
	if err != nil {
		return nil, fmt.Errorf("failed to encode line items: %w", err)
	}
	mergedParams := make(map[string]json.RawMessage, len(params)+1)
	for k, v := range params {
		mergedParams[k] = v
	}
	mergedParams["lineItems"] = encodedItems

	body := make(map[string]interface{}, len(r.BodyParams))
	for k, v := range r.BodyParams {
		body[k] = v
	}
	body["params"] = mergedParams
	return body, nil
}

// Money is an amount in minor units
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// ListingAttributes holds the listing attributes used for line items
type ListingAttributes struct {
	Title string `json:"title"`
	Price *Money `json:"price,omitempty"`
}

// Listing is a marketplace listing resource
type Listing struct {
	ID         EntityID           `json:"id"`
	Attributes *ListingAttributes `json:"attributes,omitempty"`
}

// LineItem is a priced row of a transaction
type LineItem struct {
	Code       string   `json:"code"`
	UnitPrice  Money    `json:"unitPrice"`
	Quantity   *float64 `json:"quantity,omitempty"`
	Percentage *float64 `json:"percentage,omitempty"`
	IncludeFor []string `json:"includeFor"`
}

// Document is the {"data": ...} wrapper the marketplace API returns
type Document[T any] struct {
	Data T `json:"data"`
}
