// Package cache decorates a store with an in-process holiday cache.
//
// Holiday definitions are read on every planner run and every reschedule but
// change rarely, so GetHoliday and ListHolidays are served from go-cache.
// SaveHoliday writes through and invalidates.
package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/injoimydesign/flag-community/schedule"
)

// Backend is everything the decorated store provides.
type Backend interface {
	schedule.Store
	schedule.CatalogStore
}

// Store passes every call to the backend except holiday reads, which are cached.
type Store struct {
	Backend
	cache *gocache.Cache
}

var _ Backend = (*Store)(nil)

const listKeyAll, listKeyActive = "list:all", "list:active"

// New wraps backend. ttl <= 0 uses five minutes.
func New(backend Backend, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Store{
		Backend: backend,
		cache:   gocache.New(ttl, 2*ttl),
	}
}

func (s *Store) GetHoliday(ctx context.Context, id schedule.HolidayID) (*schedule.Holiday, error) {
	key := "holiday:" + string(id)
	if x, found := s.cache.Get(key); found {
		h := x.(schedule.Holiday)
		return &h, nil
	}
	h, err := s.Backend.GetHoliday(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, *h, gocache.DefaultExpiration)
	return h, nil
}

func (s *Store) ListHolidays(ctx context.Context, activeOnly bool) ([]schedule.Holiday, error) {
	key := listKeyAll
	if activeOnly {
		key = listKeyActive
	}
	if x, found := s.cache.Get(key); found {
		return append([]schedule.Holiday(nil), x.([]schedule.Holiday)...), nil
	}
	list, err := s.Backend.ListHolidays(ctx, activeOnly)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, append([]schedule.Holiday(nil), list...), gocache.DefaultExpiration)
	return list, nil
}

func (s *Store) SaveHoliday(ctx context.Context, h schedule.Holiday) error {
	if err := s.Backend.SaveHoliday(ctx, h); err != nil {
		return err
	}
	s.Invalidate()
	return nil
}

// Invalidate drops every cached holiday.
func (s *Store) Invalidate() {
	s.cache.Flush()
}
