package ports

import (
	"context"

	"gatekeeper/internal/types"
)

// Notifier delivers messages to the operator chat and edits them in place.
type Notifier interface {
	// SendMessage posts text with optional inline buttons and returns the
	// message ID used for later edits.
	SendMessage(ctx context.Context, text string, buttons []types.Button) (int64, error)

	EditMessage(ctx context.Context, messageID int64, text string) error
}

// UpdateSource long-polls the chat for operator input.
type UpdateSource interface {
	// Poll blocks up to the channel's long-poll window and returns zero or
	// more updates. Transient failures are returned for the caller to back
	// off on; Poll never retries internally.
	Poll(ctx context.Context) ([]types.Update, error)
}
