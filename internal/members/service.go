package members

import (
	"context"
	"errors"
	"time"

	"gatekeeper/internal/flow"
	"gatekeeper/internal/ports"
	"gatekeeper/internal/types"
)

// Service layers composite operations over the member-store primitives.
// Primitives are individually atomic; everything here is best-effort
// read-modify-write and documented as such.
type Service struct {
	ports.MemberStore
}

func New(store ports.MemberStore) *Service {
	return &Service{MemberStore: store}
}

// Snapshot reads the membership view of one MAC for policy evaluation.
func (s *Service) Snapshot(ctx context.Context, mac string) (flow.Snapshot, error) {
	var snap flow.Snapshot
	var err error
	if snap.Bypass, err = s.Bypass(ctx); err != nil {
		return snap, types.Err(types.ErrStoreAccess, err, "read bypass flag")
	}
	checks := []struct {
		set types.Set
		dst *bool
	}{
		{types.SetStatic, &snap.Static},
		{types.SetApproved, &snap.Approved},
		{types.SetDenied, &snap.Denied},
		{types.SetBlacklist, &snap.Blacklisted},
	}
	for _, c := range checks {
		if *c.dst, err = s.Contains(ctx, c.set, mac); err != nil {
			return snap, types.Err(types.ErrStoreAccess, err, "read set %s", c.set)
		}
	}
	return snap, nil
}

// Approve grants membership in the approved set. Any denied membership is
// cleared first so a MAC is never in both.
func (s *Service) Approve(ctx context.Context, mac string, ttl time.Duration) error {
	if err := s.Remove(ctx, types.SetDenied, mac); err != nil {
		return types.Err(types.ErrStoreAccess, err, "clear denied for %s", mac)
	}
	if err := s.Add(ctx, types.SetApproved, mac, ttl); err != nil {
		return types.Err(types.ErrStoreAccess, err, "add approved for %s", mac)
	}
	return nil
}

// Deny records a denial. Any approved membership is cleared first.
func (s *Service) Deny(ctx context.Context, mac string, ttl time.Duration) error {
	if err := s.Remove(ctx, types.SetApproved, mac); err != nil {
		return types.Err(types.ErrStoreAccess, err, "clear approved for %s", mac)
	}
	if err := s.Add(ctx, types.SetDenied, mac, ttl); err != nil {
		return types.Err(types.ErrStoreAccess, err, "add denied for %s", mac)
	}
	return nil
}

// Extend lengthens the remaining lifetime of a member by delta. The store has
// no atomic extend, so this is read-remove-re-add; a member that expires
// between the read and the re-add surfaces as ErrExpired and is not retried.
func (s *Service) Extend(ctx context.Context, set types.Set, mac string, delta time.Duration) (time.Duration, error) {
	remaining, err := s.TTL(ctx, set, mac)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return 0, types.Err(types.ErrExpired, nil, "%s no longer in %s", mac, set)
		}
		return 0, types.Err(types.ErrStoreAccess, err, "read ttl of %s in %s", mac, set)
	}
	if remaining == 0 {
		return 0, types.Err(types.ErrValidation, nil, "%s in %s has no expiry", mac, set)
	}
	if err := s.Remove(ctx, set, mac); err != nil {
		return 0, types.Err(types.ErrStoreAccess, err, "remove %s from %s", mac, set)
	}
	next := remaining + delta
	if err := s.Add(ctx, set, mac, next); err != nil {
		return 0, types.Err(types.ErrStoreAccess, err, "re-add %s to %s", mac, set)
	}
	return next, nil
}

// Reconcile rebuilds a named set from a persisted list: flush, then re-add
// every entry without expiry. Used for both static and blacklist sync.
func (s *Service) Reconcile(ctx context.Context, set types.Set, macs []string) (int, error) {
	if err := s.Flush(ctx, set); err != nil {
		return 0, types.Err(types.ErrStoreAccess, err, "flush %s", set)
	}
	n := 0
	for _, mac := range macs {
		if err := s.Add(ctx, set, mac, 0); err != nil {
			return n, types.Err(types.ErrStoreAccess, err, "add %s to %s", mac, set)
		}
		n++
	}
	return n, nil
}
