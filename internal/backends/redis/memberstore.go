package redis

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gatekeeper/internal/types"

	"github.com/redis/go-redis/v9"
)

const (
	memberKeyTemplate = "_gk_member_%s_%s"
	bypassKeyName     = "_gk_bypass"
)

// MemberStore keeps one TTL key per membership, so expiry is entirely
// redis-managed and the engine never reaps entries itself.
type MemberStore struct {
	cli *redis.Client
}

func NewMemberStore(cli *redis.Client) *MemberStore {
	return &MemberStore{cli: cli}
}

func (s *MemberStore) Add(ctx context.Context, set types.Set, mac string, ttl time.Duration) error {
	return s.cli.Set(ctx, memberKey(set, mac), "1", ttl).Err()
}

func (s *MemberStore) Remove(ctx context.Context, set types.Set, mac string) error {
	return s.cli.Del(ctx, memberKey(set, mac)).Err()
}

func (s *MemberStore) Contains(ctx context.Context, set types.Set, mac string) (bool, error) {
	n, err := s.cli.Exists(ctx, memberKey(set, mac)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *MemberStore) TTL(ctx context.Context, set types.Set, mac string) (time.Duration, error) {
	d, err := s.cli.TTL(ctx, memberKey(set, mac)).Result()
	if err != nil {
		return 0, err
	}
	switch d {
	case time.Duration(-2): // key does not exist
		return 0, types.Err(types.ErrNotFound, nil, "%s not in %s", mac, set)
	case time.Duration(-1): // no expiry
		return 0, nil
	}
	return d, nil
}

// List enumerates a set, lexicographic by MAC so listing IDs are stable for
// an unchanged set.
func (s *MemberStore) List(ctx context.Context, set types.Set) ([]types.Membership, error) {
	keys, err := s.cli.Keys(ctx, memberKey(set, "*")).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	prefixLen := len(memberKey(set, ""))
	out := make([]types.Membership, 0, len(keys))
	for _, k := range keys {
		if len(k) <= prefixLen {
			continue
		}
		mac := k[prefixLen:]
		d, err := s.cli.TTL(ctx, k).Result()
		if err != nil {
			return nil, err
		}
		if d == time.Duration(-2) {
			continue // expired between KEYS and TTL
		}
		if d == time.Duration(-1) {
			d = 0
		}
		out = append(out, types.Membership{MAC: mac, Remaining: d})
	}
	return out, nil
}

func (s *MemberStore) Flush(ctx context.Context, set types.Set) error {
	keys, err := s.cli.Keys(ctx, memberKey(set, "*")).Result()
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return s.cli.Del(ctx, keys...).Err()
}

func (s *MemberStore) SetBypass(ctx context.Context, on bool) error {
	if on {
		return s.cli.Set(ctx, bypassKeyName, "1", 0).Err()
	}
	return s.cli.Del(ctx, bypassKeyName).Err()
}

func (s *MemberStore) Bypass(ctx context.Context) (bool, error) {
	n, err := s.cli.Exists(ctx, bypassKeyName).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func memberKey(set types.Set, mac string) string {
	return fmt.Sprintf(memberKeyTemplate, set, mac)
}
