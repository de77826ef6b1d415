package ports

import (
	"context"
	"time"

	"gatekeeper/internal/types"
)

// MemberStore is the enforcement state: four named, TTL-capable membership
// sets plus a global bypass flag. Entry expiry is store-managed; the engine
// never reaps expired members itself.
// Implementations MUST make each primitive individually atomic. Composite
// operations (extend, deny-clears-approve) live in internal/members.
type MemberStore interface {
	// Add puts mac into set. ttl==0 means no expiry.
	Add(ctx context.Context, set types.Set, mac string, ttl time.Duration) error

	// Remove deletes mac from set. Removing an absent member is not an error.
	Remove(ctx context.Context, set types.Set, mac string) error

	Contains(ctx context.Context, set types.Set, mac string) (bool, error)

	// TTL returns the remaining lifetime of mac in set.
	// MUST return types.ErrNotFound if the member is absent or already expired.
	// A zero duration with nil error means the member never expires.
	TTL(ctx context.Context, set types.Set, mac string) (time.Duration, error)

	// List enumerates the current members of set with their remaining TTLs.
	// Order is implementation-defined but stable within a single call.
	List(ctx context.Context, set types.Set) ([]types.Membership, error)

	// Flush empties set.
	Flush(ctx context.Context, set types.Set) error

	SetBypass(ctx context.Context, on bool) error
	Bypass(ctx context.Context) (bool, error)
}
