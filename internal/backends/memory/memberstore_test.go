package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"gatekeeper/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore() (*MemberStore, *time.Time) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	s := NewMemberStore()
	s.Now = func() time.Time { return now }
	return s, &now
}

func TestExpiryIsLazy(t *testing.T) {
	ctx := context.Background()
	s, now := newTestStore()

	require.NoError(t, s.Add(ctx, types.SetApproved, "aa:bb:cc:dd:ee:ff", 30*time.Minute))
	in, err := s.Contains(ctx, types.SetApproved, "aa:bb:cc:dd:ee:ff")
	require.NoError(t, err)
	assert.True(t, in)

	*now = now.Add(31 * time.Minute)
	in, err = s.Contains(ctx, types.SetApproved, "aa:bb:cc:dd:ee:ff")
	require.NoError(t, err)
	assert.False(t, in)

	_, err = s.TTL(ctx, types.SetApproved, "aa:bb:cc:dd:ee:ff")
	assert.True(t, errors.Is(err, types.ErrNotFound))
}

func TestZeroTTLNeverExpires(t *testing.T) {
	ctx := context.Background()
	s, now := newTestStore()

	require.NoError(t, s.Add(ctx, types.SetStatic, "aa:bb:cc:dd:ee:ff", 0))
	*now = now.Add(1000 * time.Hour)

	in, err := s.Contains(ctx, types.SetStatic, "aa:bb:cc:dd:ee:ff")
	require.NoError(t, err)
	assert.True(t, in)
	remaining, err := s.TTL(ctx, types.SetStatic, "aa:bb:cc:dd:ee:ff")
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), remaining)
}

func TestListSortedAndLive(t *testing.T) {
	ctx := context.Background()
	s, now := newTestStore()

	require.NoError(t, s.Add(ctx, types.SetApproved, "cc:cc:cc:cc:cc:cc", time.Hour))
	require.NoError(t, s.Add(ctx, types.SetApproved, "aa:aa:aa:aa:aa:aa", time.Hour))
	require.NoError(t, s.Add(ctx, types.SetApproved, "bb:bb:bb:bb:bb:bb", time.Minute))

	*now = now.Add(30 * time.Minute)
	entries, err := s.List(ctx, types.SetApproved)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "aa:aa:aa:aa:aa:aa", entries[0].MAC)
	assert.Equal(t, "cc:cc:cc:cc:cc:cc", entries[1].MAC)
	assert.Equal(t, 30*time.Minute, entries[0].Remaining)
}

func TestFlushAndBypass(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()

	require.NoError(t, s.Add(ctx, types.SetBlacklist, "aa:bb:cc:dd:ee:ff", 0))
	require.NoError(t, s.Flush(ctx, types.SetBlacklist))
	in, err := s.Contains(ctx, types.SetBlacklist, "aa:bb:cc:dd:ee:ff")
	require.NoError(t, err)
	assert.False(t, in)

	on, err := s.Bypass(ctx)
	require.NoError(t, err)
	assert.False(t, on)
	require.NoError(t, s.SetBypass(ctx, true))
	on, err = s.Bypass(ctx)
	require.NoError(t, err)
	assert.True(t, on)
}
