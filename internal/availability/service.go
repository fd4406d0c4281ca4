// Package availability computes the open hour slots of a provider's
// working day for booking clients to pick from.
package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/bookline/bookline/pkg/logging"
)

// Working hours: slots start on the hour from 08:00 through 19:00.
const (
	firstHour = 8
	lastHour  = 19
)

// BookedSource lists the hour starts of a provider's active appointments
// in a window. The appointments repository implements it.
type BookedSource interface {
	ActiveHours(ctx context.Context, providerID int64, from, to time.Time) ([]time.Time, error)
}

// Slot is one bookable hour of a provider's day.
type Slot struct {
	Time      string    `json:"time"`
	Value     time.Time `json:"value"`
	Available bool      `json:"available"`
}

// Service resolves day availability, consulting the cache before the
// appointment store.
type Service struct {
	source BookedSource
	cache  *Cache
	logger *logging.Logger
	now    func() time.Time
}

// NewService constructs the availability service. cache may be nil.
func NewService(source BookedSource, cache *Cache, logger *logging.Logger) *Service {
	if source == nil {
		panic("availability: booked source required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{source: source, cache: cache, logger: logger, now: time.Now}
}

// Day returns the provider's slots for the given day. A slot is
// available when its hour has not started yet and no active appointment
// occupies it.
func (s *Service) Day(ctx context.Context, providerID int64, day time.Time) ([]Slot, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())

	booked, hit := s.cache.BookedHours(ctx, providerID, dayStart)
	if !hit {
		var err error
		booked, err = s.source.ActiveHours(ctx, providerID, dayStart, dayStart.AddDate(0, 0, 1))
		if err != nil {
			return nil, err
		}
		if err := s.cache.StoreBookedHours(ctx, providerID, dayStart, booked); err != nil {
			s.logger.Warn("availability cache store failed", "error", err, "provider_id", providerID)
		}
	}

	taken := make(map[int64]struct{}, len(booked))
	for _, h := range booked {
		taken[h.Unix()] = struct{}{}
	}

	now := s.now()
	slots := make([]Slot, 0, lastHour-firstHour+1)
	for hour := firstHour; hour <= lastHour; hour++ {
		slotTime := dayStart.Add(time.Duration(hour) * time.Hour)
		_, isTaken := taken[slotTime.Unix()]
		slots = append(slots, Slot{
			Time:      fmt.Sprintf("%02d:00", hour),
			Value:     slotTime,
			Available: slotTime.After(now) && !isTaken,
		})
	}
	return slots, nil
}
