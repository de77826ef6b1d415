package redis

import (
	"context"

	"gatekeeper/internal/types"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const (
	auditKeyName = "_gk_audit"
	auditHardCap = 255
)

// AuditLog keeps the admission history in a capped list, newest first.
type AuditLog struct {
	cli *redis.Client
}

func NewAuditLog(cli *redis.Client) *AuditLog {
	return &AuditLog{cli: cli}
}

func (a *AuditLog) Append(ctx context.Context, rec types.AuditRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := a.cli.LPush(ctx, auditKeyName, string(b)).Err(); err != nil {
		return err
	}
	return a.cli.LTrim(ctx, auditKeyName, 0, auditHardCap).Err()
}

func (a *AuditLog) Recent(ctx context.Context, n int) ([]types.AuditRecord, error) {
	if n <= 0 {
		return nil, nil
	}
	vals, err := a.cli.LRange(ctx, auditKeyName, 0, int64(n-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]types.AuditRecord, 0, len(vals))
	for _, v := range vals {
		var rec types.AuditRecord
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			log.WithError(err).Warn("skipping undecodable audit record")
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}
