package availability

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	hours []time.Time
	calls int
}

func (s *stubSource) ActiveHours(_ context.Context, _ int64, _, _ time.Time) ([]time.Time, error) {
	s.calls++
	return s.hours, nil
}

func day(t *testing.T, value string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", value)
	require.NoError(t, err)
	return d
}

func TestDayMarksBookedAndPastSlots(t *testing.T) {
	theDay := day(t, "2024-01-10")
	source := &stubSource{hours: []time.Time{
		theDay.Add(14 * time.Hour),
	}}
	svc := NewService(source, nil, nil)
	svc.now = func() time.Time { return theDay.Add(10*time.Hour + 30*time.Minute) }

	slots, err := svc.Day(context.Background(), 2, theDay)
	require.NoError(t, err)
	require.Len(t, slots, 12)

	byTime := map[string]Slot{}
	for _, s := range slots {
		byTime[s.Time] = s
	}
	require.False(t, byTime["08:00"].Available, "already started")
	require.False(t, byTime["10:00"].Available, "current hour already started")
	require.True(t, byTime["11:00"].Available)
	require.False(t, byTime["14:00"].Available, "booked")
	require.True(t, byTime["19:00"].Available)
}

func TestDayUsesCacheOnSecondLookup(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	theDay := day(t, "2024-01-10")
	source := &stubSource{hours: []time.Time{theDay.Add(14 * time.Hour)}}
	svc := NewService(source, NewCache(client, time.Minute), nil)
	svc.now = func() time.Time { return theDay.Add(9 * time.Hour) }

	_, err := svc.Day(context.Background(), 2, theDay)
	require.NoError(t, err)
	slots, err := svc.Day(context.Background(), 2, theDay)
	require.NoError(t, err)

	require.Equal(t, 1, source.calls)
	for _, s := range slots {
		if s.Time == "14:00" {
			require.False(t, s.Available)
		}
	}
}

func TestInvalidateDayForcesRefetch(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	theDay := day(t, "2024-01-10")
	source := &stubSource{}
	cache := NewCache(client, time.Minute)
	svc := NewService(source, cache, nil)
	svc.now = func() time.Time { return theDay.Add(9 * time.Hour) }

	_, err := svc.Day(context.Background(), 2, theDay)
	require.NoError(t, err)
	require.NoError(t, cache.InvalidateDay(context.Background(), 2, theDay))

	source.hours = []time.Time{theDay.Add(15 * time.Hour)}
	slots, err := svc.Day(context.Background(), 2, theDay)
	require.NoError(t, err)
	require.Equal(t, 2, source.calls)
	for _, s := range slots {
		if s.Time == "15:00" {
			require.False(t, s.Available)
		}
	}
}

func TestNilCacheIsNoop(t *testing.T) {
	var cache *Cache
	_, hit := cache.BookedHours(context.Background(), 2, time.Now())
	require.False(t, hit)
	require.NoError(t, cache.StoreBookedHours(context.Background(), 2, time.Now(), nil))
	require.NoError(t, cache.InvalidateDay(context.Background(), 2, time.Now()))
}

func TestCacheRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cache := NewCache(client, time.Minute)
	theDay := day(t, "2024-01-10")
	stored := []time.Time{theDay.Add(14 * time.Hour)}

	require.NoError(t, cache.StoreBookedHours(context.Background(), 2, theDay, stored))
	got, hit := cache.BookedHours(context.Background(), 2, theDay)
	require.True(t, hit)
	require.Len(t, got, 1)
	require.True(t, got[0].Equal(stored[0]))

	// A different provider's day is a separate key.
	_, hit = cache.BookedHours(context.Background(), 3, theDay)
	require.False(t, hit)
}
