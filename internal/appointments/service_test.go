package appointments

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bookline/bookline/internal/notifications"
	"github.com/bookline/bookline/internal/notify"
	"github.com/bookline/bookline/internal/users"
)

// Fixed clock for every rule test: 2024-01-10 10:00 UTC.
var testNow = time.Date(2024, 1, 10, 10, 0, 0, 0, time.UTC)

type stubUserRepo struct {
	byID map[int64]*users.User
}

func (r *stubUserRepo) Create(_ context.Context, u *users.User) (*users.User, error) {
	return u, nil
}

func (r *stubUserRepo) GetByID(_ context.Context, id int64) (*users.User, error) {
	u, ok := r.byID[id]
	if !ok {
		return nil, users.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (r *stubUserRepo) GetByEmail(_ context.Context, email string) (*users.User, error) {
	for _, u := range r.byID {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, users.ErrNotFound
}

func (r *stubUserRepo) Update(_ context.Context, u *users.User) (*users.User, error) {
	return u, nil
}

func (r *stubUserRepo) ListProviders(_ context.Context) ([]users.User, error) {
	return nil, nil
}

type stubApptRepo struct {
	appts      map[int64]*Appointment
	nextID     int64
	lastLimit  int
	lastOffset int
}

func newStubApptRepo() *stubApptRepo {
	return &stubApptRepo{appts: map[int64]*Appointment{}, nextID: 1}
}

func (r *stubApptRepo) Create(_ context.Context, a *Appointment) (*Appointment, error) {
	// Mirrors the partial unique index in the schema.
	hour := StartOfHour(a.Date)
	for _, existing := range r.appts {
		if existing.ProviderID == a.ProviderID && !existing.Canceled() && StartOfHour(existing.Date).Equal(hour) {
			return nil, ErrSlotUnavailable
		}
	}
	out := *a
	out.ID = r.nextID
	out.CreatedAt = testNow
	out.UpdatedAt = testNow
	r.nextID++
	r.appts[out.ID] = &out
	copied := out
	return &copied, nil
}

func (r *stubApptRepo) GetByID(_ context.Context, id int64) (*Appointment, error) {
	a, ok := r.appts[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *a
	return &copied, nil
}

func (r *stubApptRepo) MarkCanceled(_ context.Context, id int64, at time.Time) (*Appointment, error) {
	a, ok := r.appts[id]
	if !ok || a.Canceled() {
		return nil, ErrAlreadyCanceled
	}
	stamped := at
	a.CanceledAt = &stamped
	a.UpdatedAt = at
	copied := *a
	return &copied, nil
}

func (r *stubApptRepo) ActiveSlotExists(_ context.Context, providerID int64, hourStart time.Time) (bool, error) {
	for _, a := range r.appts {
		if a.ProviderID == providerID && !a.Canceled() && StartOfHour(a.Date).Equal(hourStart) {
			return true, nil
		}
	}
	return false, nil
}

func (r *stubApptRepo) ListActiveByRequester(_ context.Context, requesterID int64, limit, offset int) ([]Summary, error) {
	r.lastLimit = limit
	r.lastOffset = offset
	return []Summary{}, nil
}

func (r *stubApptRepo) ListProviderDay(_ context.Context, providerID int64, from, to time.Time) ([]ScheduleEntry, error) {
	out := []ScheduleEntry{}
	for _, a := range r.appts {
		if a.ProviderID == providerID && !a.Canceled() && !a.Date.Before(from) && a.Date.Before(to) {
			out = append(out, ScheduleEntry{ID: a.ID, Date: a.Date})
		}
	}
	return out, nil
}

func (r *stubApptRepo) ActiveHours(_ context.Context, providerID int64, from, to time.Time) ([]time.Time, error) {
	var out []time.Time
	for _, a := range r.appts {
		if a.ProviderID == providerID && !a.Canceled() && !a.Date.Before(from) && a.Date.Before(to) {
			out = append(out, StartOfHour(a.Date))
		}
	}
	return out, nil
}

type stubSink struct {
	created   []notifications.Notification
	createErr error
}

func (s *stubSink) Create(_ context.Context, n *notifications.Notification) (*notifications.Notification, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.created = append(s.created, *n)
	return n, nil
}

func (s *stubSink) ListByRecipient(_ context.Context, _ int64, _ int) ([]notifications.Notification, error) {
	return nil, nil
}

func (s *stubSink) MarkRead(_ context.Context, _, _ int64) (*notifications.Notification, error) {
	return nil, notifications.ErrNotFound
}

type stubMailer struct {
	sent []notify.CancellationEmail
}

func (m *stubMailer) AppointmentCanceled(_ context.Context, msg notify.CancellationEmail) error {
	m.sent = append(m.sent, msg)
	return nil
}

type stubInvalidator struct {
	days []string
}

func (i *stubInvalidator) InvalidateDay(_ context.Context, providerID int64, day time.Time) error {
	i.days = append(i.days, fmt.Sprintf("%d:%s", providerID, day.Format("2006-01-02")))
	return nil
}

type fixture struct {
	service     *Service
	appts       *stubApptRepo
	sink        *stubSink
	mailer      *stubMailer
	invalidator *stubInvalidator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	userRepo := &stubUserRepo{byID: map[int64]*users.User{
		1: {ID: 1, Name: "Alice Walker", Email: "alice@example.com", Provider: false},
		2: {ID: 2, Name: "Bob the Barber", Email: "bob@example.com", Provider: true},
		3: {ID: 3, Name: "Carla Cuts", Email: "carla@example.com", Provider: true},
	}}
	f := &fixture{
		appts:       newStubApptRepo(),
		sink:        &stubSink{},
		mailer:      &stubMailer{},
		invalidator: &stubInvalidator{},
	}
	f.service = NewService(
		f.appts,
		userRepo,
		f.sink,
		notifications.NewFormatter("en"),
		f.mailer,
		f.invalidator,
		nil,
		nil,
	)
	f.service.now = func() time.Time { return testNow }
	return f
}

func TestCreateBooksFutureSlot(t *testing.T) {
	f := newFixture(t)

	// 14:30 stays 14:30 in storage even though the slot is 14:00.
	appt, err := f.service.Create(context.Background(), 1, 2, "2024-01-10T14:30:00Z")
	require.NoError(t, err)
	require.Nil(t, appt.CanceledAt)
	require.Equal(t, int64(1), appt.RequesterID)
	require.Equal(t, int64(2), appt.ProviderID)
	require.Equal(t, time.Date(2024, 1, 10, 14, 30, 0, 0, time.UTC), appt.Date.UTC())

	require.Len(t, f.sink.created, 1)
	require.Equal(t, int64(2), f.sink.created[0].RecipientID)
	require.Contains(t, f.sink.created[0].Content, "Alice Walker")
	// The notification text carries the normalized hour, not 14:30.
	require.Contains(t, f.sink.created[0].Content, "2:00 PM")

	require.Equal(t, []string{"2:2024-01-10"}, f.invalidator.days)
}

func TestCreateRejectsTakenSlot(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Create(context.Background(), 1, 2, "2024-01-10T14:05:00Z")
	require.NoError(t, err)

	// Same clock hour, different minutes, different requester: collides.
	_, err = f.service.Create(context.Background(), 4, 2, "2024-01-10T14:55:00Z")
	require.ErrorIs(t, err, ErrSlotUnavailable)

	// A different provider's 14:00 is untouched.
	_, err = f.service.Create(context.Background(), 1, 3, "2024-01-10T14:05:00Z")
	require.NoError(t, err)
}

func TestCreateCanceledSlotReopens(t *testing.T) {
	f := newFixture(t)

	appt, err := f.service.Create(context.Background(), 1, 2, "2024-01-10T14:00:00Z")
	require.NoError(t, err)
	_, err = f.service.Cancel(context.Background(), 1, appt.ID)
	require.NoError(t, err)

	_, err = f.service.Create(context.Background(), 1, 2, "2024-01-10T14:00:00Z")
	require.NoError(t, err)
}

func TestCreateRejectsSelfBooking(t *testing.T) {
	f := newFixture(t)

	// Provider 2 booking themselves: every other rule passes, the
	// self-booking rule still rejects.
	_, err := f.service.Create(context.Background(), 2, 2, "2024-01-10T14:00:00Z")
	require.ErrorIs(t, err, ErrSelfBooking)
	require.Empty(t, f.sink.created)
}

func TestCreateRejectsPastDates(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Create(context.Background(), 1, 2, "2024-01-09T14:00:00Z")
	require.ErrorIs(t, err, ErrPastDate)

	// 10:45 normalizes to 10:00, which is not before now (10:00): allowed.
	_, err = f.service.Create(context.Background(), 1, 2, "2024-01-10T10:45:00Z")
	require.NoError(t, err)

	// 09:59 normalizes to 09:00, already past.
	_, err = f.service.Create(context.Background(), 1, 3, "2024-01-10T09:59:00Z")
	require.ErrorIs(t, err, ErrPastDate)
}

func TestCreateRejectsNonProviders(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Create(context.Background(), 2, 1, "2024-01-10T14:00:00Z")
	require.ErrorIs(t, err, ErrNotAProvider)

	_, err = f.service.Create(context.Background(), 1, 99, "2024-01-10T14:00:00Z")
	require.ErrorIs(t, err, ErrNotAProvider)
}

func TestCreateRejectsMalformedInput(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Create(context.Background(), 1, 0, "2024-01-10T14:00:00Z")
	require.ErrorIs(t, err, ErrValidation)

	_, err = f.service.Create(context.Background(), 1, 2, "")
	require.ErrorIs(t, err, ErrValidation)

	_, err = f.service.Create(context.Background(), 1, 2, "next tuesday")
	require.ErrorIs(t, err, ErrValidation)
}

func TestCreateSurvivesNotificationFailure(t *testing.T) {
	f := newFixture(t)
	f.sink.createErr = errors.New("sink down")

	appt, err := f.service.Create(context.Background(), 1, 2, "2024-01-10T14:00:00Z")
	require.NoError(t, err)
	require.NotZero(t, appt.ID)
}

func TestCancelBeforeCutoff(t *testing.T) {
	f := newFixture(t)

	// Appointment at 14:00; now is 10:00, well before the 12:00 cutoff.
	appt, err := f.service.Create(context.Background(), 1, 2, "2024-01-10T14:00:00Z")
	require.NoError(t, err)

	updated, err := f.service.Cancel(context.Background(), 1, appt.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.CanceledAt)
	require.Equal(t, testNow, updated.CanceledAt.UTC())

	require.Len(t, f.mailer.sent, 1)
	require.Equal(t, "bob@example.com", f.mailer.sent[0].ProviderEmail)
	require.Equal(t, "Alice Walker", f.mailer.sent[0].RequesterName)

	// Booking and canceling each reopen the provider's cached day.
	require.Equal(t, []string{"2:2024-01-10", "2:2024-01-10"}, f.invalidator.days)
}

func TestCancelCutoffBoundary(t *testing.T) {
	// A 14:00 appointment can be canceled at 11:59 but not at 12:01.
	f := newFixture(t)
	appt, err := f.service.Create(context.Background(), 1, 2, "2024-01-10T14:00:00Z")
	require.NoError(t, err)

	f.service.now = func() time.Time { return time.Date(2024, 1, 10, 12, 1, 0, 0, time.UTC) }
	_, err = f.service.Cancel(context.Background(), 1, appt.ID)
	require.ErrorIs(t, err, ErrTooLateToCancel)

	f.service.now = func() time.Time { return time.Date(2024, 1, 10, 11, 59, 0, 0, time.UTC) }
	_, err = f.service.Cancel(context.Background(), 1, appt.ID)
	require.NoError(t, err)
}

func TestCancelExactCutoffIsTooLate(t *testing.T) {
	f := newFixture(t)
	appt, err := f.service.Create(context.Background(), 1, 2, "2024-01-10T14:00:00Z")
	require.NoError(t, err)

	f.service.now = func() time.Time { return time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC) }
	_, err = f.service.Cancel(context.Background(), 1, appt.ID)
	require.ErrorIs(t, err, ErrTooLateToCancel)
}

func TestCancelRequiresOwnership(t *testing.T) {
	f := newFixture(t)
	appt, err := f.service.Create(context.Background(), 1, 2, "2024-01-10T14:00:00Z")
	require.NoError(t, err)

	_, err = f.service.Cancel(context.Background(), 3, appt.ID)
	require.ErrorIs(t, err, ErrForbidden)
	require.Empty(t, f.mailer.sent)
}

func TestCancelMissingAppointment(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.Cancel(context.Background(), 1, 12345)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCancelTwiceFails(t *testing.T) {
	f := newFixture(t)
	appt, err := f.service.Create(context.Background(), 1, 2, "2024-01-10T14:00:00Z")
	require.NoError(t, err)

	_, err = f.service.Cancel(context.Background(), 1, appt.ID)
	require.NoError(t, err)
	_, err = f.service.Cancel(context.Background(), 1, appt.ID)
	require.ErrorIs(t, err, ErrAlreadyCanceled)
}

func TestListNormalizesPaging(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.List(context.Background(), 1, 0)
	require.NoError(t, err)
	require.Equal(t, PageSize, f.appts.lastLimit)
	require.Equal(t, 0, f.appts.lastOffset)

	_, err = f.service.List(context.Background(), 1, 3)
	require.NoError(t, err)
	require.Equal(t, 2*PageSize, f.appts.lastOffset)
}

func TestProviderDayRequiresProvider(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.ProviderDay(context.Background(), 1, testNow)
	require.ErrorIs(t, err, ErrNotAProvider)

	_, err = f.service.Create(context.Background(), 1, 2, "2024-01-10T14:00:00Z")
	require.NoError(t, err)
	entries, err := f.service.ProviderDay(context.Background(), 2, testNow)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}
