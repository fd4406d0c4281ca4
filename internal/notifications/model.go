package notifications

import (
	"errors"
	"time"
)

// ErrNotFound indicates the notification does not exist or belongs to
// another recipient.
var ErrNotFound = errors.New("notification not found")

// ListLimit caps how many notifications a provider loads at once.
const ListLimit = 20

// Notification is an append-only message directed at a user. Booking
// creates them; the only mutation ever applied is the read flag.
type Notification struct {
	ID          int64     `json:"id"`
	Content     string    `json:"content"`
	RecipientID int64     `json:"recipient_id"`
	Read        bool      `json:"read"`
	CreatedAt   time.Time `json:"created_at"`
}
