package appointments

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/bookline/bookline/internal/notifications"
	"github.com/bookline/bookline/internal/notify"
	"github.com/bookline/bookline/internal/observability/metrics"
	"github.com/bookline/bookline/internal/users"
	"github.com/bookline/bookline/pkg/logging"
)

var tracer = otel.Tracer("bookline.internal.appointments")

// SlotInvalidator drops cached availability for a provider's day after a
// booking or cancellation changes it.
type SlotInvalidator interface {
	InvalidateDay(ctx context.Context, providerID int64, day time.Time) error
}

// Service is the booking rule engine. It validates requests against the
// user directory and appointment store and appends notifications as a
// side effect of booking.
type Service struct {
	appts   Repository
	users   users.Repository
	sink    notifications.Repository
	format  notifications.Formatter
	mailer  notify.Mailer
	cache   SlotInvalidator
	metrics *metrics.BookingMetrics
	logger  *logging.Logger
	now     func() time.Time
}

// NewService constructs the booking engine. mailer, cache and metrics
// may be nil; those side channels are then skipped.
func NewService(
	appts Repository,
	userRepo users.Repository,
	sink notifications.Repository,
	format notifications.Formatter,
	mailer notify.Mailer,
	cache SlotInvalidator,
	m *metrics.BookingMetrics,
	logger *logging.Logger,
) *Service {
	if appts == nil {
		panic("appointments: repository required")
	}
	if userRepo == nil {
		panic("appointments: user repository required")
	}
	if format == nil {
		format = notifications.NewFormatter("")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		appts:   appts,
		users:   userRepo,
		sink:    sink,
		format:  format,
		mailer:  mailer,
		cache:   cache,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// List returns the requester's scheduled appointments, date ascending,
// twenty per page. page values below one read the first page.
func (s *Service) List(ctx context.Context, requesterID int64, page int) ([]Summary, error) {
	if page < 1 {
		page = 1
	}
	return s.appts.ListActiveByRequester(ctx, requesterID, PageSize, (page-1)*PageSize)
}

// Create books an hour slot with a provider. The stored date keeps the
// precision rawDate carried; only the slot comparison and the past-date
// check use the hour-normalized value.
func (s *Service) Create(ctx context.Context, requesterID, providerID int64, rawDate string) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointments.create")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("bookline.requester_id", requesterID),
		attribute.Int64("bookline.provider_id", providerID),
	)
	start := s.now()
	defer func() {
		s.metrics.ObserveLatency("create", s.now().Sub(start).Seconds())
	}()

	appt, err := s.create(ctx, requesterID, providerID, rawDate)
	if err != nil {
		span.RecordError(err)
		s.metrics.ObserveBooking("rejected")
		return nil, err
	}
	s.metrics.ObserveBooking("created")
	s.logger.Info("appointment booked",
		"appointment_id", appt.ID,
		"requester_id", requesterID,
		"provider_id", providerID,
		"date", appt.Date,
	)
	return appt, nil
}

func (s *Service) create(ctx context.Context, requesterID, providerID int64, rawDate string) (*Appointment, error) {
	if providerID <= 0 || rawDate == "" {
		return nil, ErrValidation
	}
	date, err := time.Parse(time.RFC3339, rawDate)
	if err != nil {
		return nil, ErrValidation
	}

	provider, err := s.users.GetByID(ctx, providerID)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return nil, ErrNotAProvider
		}
		return nil, err
	}
	if !provider.Provider {
		return nil, ErrNotAProvider
	}

	hourStart := StartOfHour(date)
	if hourStart.Before(s.now()) {
		return nil, ErrPastDate
	}

	taken, err := s.appts.ActiveSlotExists(ctx, providerID, hourStart)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrSlotUnavailable
	}

	if providerID == requesterID {
		return nil, ErrSelfBooking
	}

	requester, err := s.users.GetByID(ctx, requesterID)
	if err != nil {
		return nil, err
	}

	// The insert goes first so a lost race on the slot index never
	// leaves a notification for a booking that failed.
	appt, err := s.appts.Create(ctx, &Appointment{
		RequesterID: requesterID,
		ProviderID:  providerID,
		Date:        date,
	})
	if err != nil {
		return nil, err
	}

	if s.sink != nil {
		content := s.format(requester.Name, hourStart)
		if _, err := s.sink.Create(ctx, &notifications.Notification{
			Content:     content,
			RecipientID: providerID,
		}); err != nil {
			s.logger.Error("booking notification failed", "error", err, "appointment_id", appt.ID)
		}
	}
	s.invalidateDay(ctx, providerID, hourStart)
	return appt, nil
}

// Cancel voids an appointment. Only the requester may cancel, and only
// with more than two hours to spare before the slot.
func (s *Service) Cancel(ctx context.Context, requesterID, appointmentID int64) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointments.cancel")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("bookline.requester_id", requesterID),
		attribute.Int64("bookline.appointment_id", appointmentID),
	)

	appt, err := s.appts.GetByID(ctx, appointmentID)
	if err != nil {
		span.RecordError(err)
		s.metrics.ObserveCancellation("rejected")
		return nil, err
	}
	if appt.RequesterID != requesterID {
		s.metrics.ObserveCancellation("rejected")
		return nil, ErrForbidden
	}
	if appt.Canceled() {
		s.metrics.ObserveCancellation("rejected")
		return nil, ErrAlreadyCanceled
	}
	cutoff := appt.Date.Add(-CancellationNotice)
	if !s.now().Before(cutoff) {
		s.metrics.ObserveCancellation("rejected")
		return nil, ErrTooLateToCancel
	}

	updated, err := s.appts.MarkCanceled(ctx, appointmentID, s.now())
	if err != nil {
		span.RecordError(err)
		s.metrics.ObserveCancellation("rejected")
		return nil, err
	}
	s.metrics.ObserveCancellation("canceled")
	s.logger.Info("appointment canceled",
		"appointment_id", updated.ID,
		"requester_id", requesterID,
		"provider_id", updated.ProviderID,
	)

	s.emailProvider(ctx, updated)
	s.invalidateDay(ctx, updated.ProviderID, StartOfHour(updated.Date))
	return updated, nil
}

// ProviderDay lists a provider's own schedule for one day. Callers that
// are not providers are rejected.
func (s *Service) ProviderDay(ctx context.Context, providerID int64, day time.Time) ([]ScheduleEntry, error) {
	u, err := s.users.GetByID(ctx, providerID)
	if err != nil {
		return nil, err
	}
	if !u.Provider {
		return nil, ErrNotAProvider
	}
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	return s.appts.ListProviderDay(ctx, providerID, from, from.AddDate(0, 0, 1))
}

func (s *Service) emailProvider(ctx context.Context, appt *Appointment) {
	if s.mailer == nil {
		return
	}
	provider, err := s.users.GetByID(ctx, appt.ProviderID)
	if err != nil {
		s.logger.Error("cancellation email lookup failed", "error", err, "provider_id", appt.ProviderID)
		return
	}
	requester, err := s.users.GetByID(ctx, appt.RequesterID)
	if err != nil {
		s.logger.Error("cancellation email lookup failed", "error", err, "requester_id", appt.RequesterID)
		return
	}
	if err := s.mailer.AppointmentCanceled(ctx, notify.CancellationEmail{
		ProviderName:  provider.Name,
		ProviderEmail: provider.Email,
		RequesterName: requester.Name,
		Date:          appt.Date,
	}); err != nil {
		s.logger.Error("cancellation email failed", "error", err, "appointment_id", appt.ID)
	}
}

func (s *Service) invalidateDay(ctx context.Context, providerID int64, day time.Time) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateDay(ctx, providerID, day); err != nil {
		s.logger.Warn("availability cache invalidation failed", "error", err, "provider_id", providerID)
	}
}
