package ports

import (
	"context"

	"gatekeeper/internal/types"
)

// PolicyStore persists PolicyConfig across restarts. Implementations MUST
// serialize concurrent Save calls; the engine writes on every mutating
// command.
type PolicyStore interface {
	// Load returns the stored policy. When nothing is stored yet it returns
	// the default policy and persists it.
	Load(ctx context.Context) (types.PolicyConfig, error)

	Save(ctx context.Context, cfg types.PolicyConfig) error
}
