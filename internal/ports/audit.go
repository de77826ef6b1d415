package ports

import (
	"context"

	"gatekeeper/internal/types"
)

// AuditLog records admission outcomes, most recent first, capped by the
// implementation.
type AuditLog interface {
	Append(ctx context.Context, rec types.AuditRecord) error

	// Recent returns up to n records, newest first.
	Recent(ctx context.Context, n int) ([]types.AuditRecord, error)
}
