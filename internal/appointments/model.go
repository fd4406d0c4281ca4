package appointments

import (
	"errors"
	"time"
)

// PageSize is the fixed page length for appointment listings.
const PageSize = 20

// CancellationNotice is the minimum lead time a requester must leave
// between canceling and the appointment itself.
const CancellationNotice = 2 * time.Hour

var (
	// ErrValidation indicates a malformed booking request.
	ErrValidation = errors.New("validation failed")
	// ErrNotAProvider indicates the target user cannot take bookings.
	ErrNotAProvider = errors.New("user is not a provider")
	// ErrPastDate indicates the requested slot is already in the past.
	ErrPastDate = errors.New("appointments can only be scheduled on future dates")
	// ErrSlotUnavailable indicates the provider's hour slot is taken.
	ErrSlotUnavailable = errors.New("appointment date is not available")
	// ErrSelfBooking indicates a provider tried to book themselves.
	ErrSelfBooking = errors.New("appointments cannot be booked with yourself")
	// ErrNotFound indicates the appointment does not exist.
	ErrNotFound = errors.New("appointment not found")
	// ErrForbidden indicates the caller does not own the appointment.
	ErrForbidden = errors.New("appointments can only be canceled by their requester")
	// ErrAlreadyCanceled indicates a repeat cancellation.
	ErrAlreadyCanceled = errors.New("appointment is already canceled")
	// ErrTooLateToCancel indicates the two-hour cutoff has passed.
	ErrTooLateToCancel = errors.New("appointments can only be canceled two hours in advance")
)

// Appointment is a booked hour slot. Date keeps the precision the
// requester supplied; only slot comparisons are hour-normalized.
type Appointment struct {
	ID          int64      `json:"id"`
	RequesterID int64      `json:"requester_id"`
	ProviderID  int64      `json:"provider_id"`
	Date        time.Time  `json:"date"`
	CanceledAt  *time.Time `json:"canceled_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Canceled reports whether the appointment reached its terminal state.
func (a *Appointment) Canceled() bool {
	return a.CanceledAt != nil
}

// Party is the counterparty shown next to a listed slot. Listings never
// expose contact details; email stays inside the users package.
type Party struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Summary is a listing entry enriched with the provider's display profile.
type Summary struct {
	ID       int64     `json:"id"`
	Date     time.Time `json:"date"`
	Provider Party     `json:"provider"`
}

// ScheduleEntry is a provider-side listing entry enriched with the
// requester's display profile.
type ScheduleEntry struct {
	ID        int64     `json:"id"`
	Date      time.Time `json:"date"`
	Requester Party     `json:"requester"`
}

// StartOfHour truncates t to the start of its containing clock hour in
// t's own location.
func StartOfHour(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
}
