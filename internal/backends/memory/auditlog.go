package memory

import (
	"context"
	"sync"

	"gatekeeper/internal/types"
)

// AuditLog keeps admission history in memory, newest first.
type AuditLog struct {
	mu   sync.Mutex
	recs []types.AuditRecord
	cap  int
}

func NewAuditLog() *AuditLog {
	return &AuditLog{cap: 256}
}

func (a *AuditLog) Append(_ context.Context, rec types.AuditRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.recs = append([]types.AuditRecord{rec}, a.recs...)
	if len(a.recs) > a.cap {
		a.recs = a.recs[:a.cap]
	}
	return nil
}

func (a *AuditLog) Recent(_ context.Context, n int) ([]types.AuditRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if n > len(a.recs) {
		n = len(a.recs)
	}
	out := make([]types.AuditRecord, n)
	copy(out, a.recs[:n])
	return out, nil
}
