// Package memory holds in-process store implementations used by tests and
// single-box deployments without an external store.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"gatekeeper/internal/types"
)

// MemberStore is a map-backed MemberStore with lazy expiry.
type MemberStore struct {
	mu     sync.Mutex
	sets   map[types.Set]map[string]time.Time // zero time = no expiry
	bypass bool

	// Now is injectable for deterministic expiry tests.
	Now func() time.Time
}

func NewMemberStore() *MemberStore {
	return &MemberStore{
		sets: make(map[types.Set]map[string]time.Time),
		Now:  time.Now,
	}
}

func (s *MemberStore) Add(_ context.Context, set types.Set, mac string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.sets[set]
	if m == nil {
		m = make(map[string]time.Time)
		s.sets[set] = m
	}
	if ttl > 0 {
		m[mac] = s.Now().Add(ttl)
	} else {
		m[mac] = time.Time{}
	}
	return nil
}

func (s *MemberStore) Remove(_ context.Context, set types.Set, mac string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sets[set], mac)
	return nil
}

func (s *MemberStore) Contains(_ context.Context, set types.Set, mac string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.sets[set][mac]
	if !ok {
		return false, nil
	}
	if !exp.IsZero() && !s.Now().Before(exp) {
		delete(s.sets[set], mac)
		return false, nil
	}
	return true, nil
}

func (s *MemberStore) TTL(_ context.Context, set types.Set, mac string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.sets[set][mac]
	if !ok {
		return 0, types.Err(types.ErrNotFound, nil, "%s not in %s", mac, set)
	}
	if exp.IsZero() {
		return 0, nil
	}
	remaining := exp.Sub(s.Now())
	if remaining <= 0 {
		delete(s.sets[set], mac)
		return 0, types.Err(types.ErrNotFound, nil, "%s not in %s", mac, set)
	}
	return remaining, nil
}

// List enumerates a set, lexicographic by MAC so listing IDs are stable for
// an unchanged set.
func (s *MemberStore) List(_ context.Context, set types.Set) ([]types.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.Now()
	out := make([]types.Membership, 0, len(s.sets[set]))
	for mac, exp := range s.sets[set] {
		if !exp.IsZero() && !now.Before(exp) {
			continue
		}
		m := types.Membership{MAC: mac}
		if !exp.IsZero() {
			m.Remaining = exp.Sub(now)
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MAC < out[j].MAC })
	return out, nil
}

func (s *MemberStore) Flush(_ context.Context, set types.Set) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sets, set)
	return nil
}

func (s *MemberStore) SetBypass(_ context.Context, on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bypass = on
	return nil
}

func (s *MemberStore) Bypass(_ context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bypass, nil
}
