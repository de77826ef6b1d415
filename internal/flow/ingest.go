package flow

import (
	"time"

	"gatekeeper/internal/types"

	"github.com/jmespath/go-jmespath"
	log "github.com/sirupsen/logrus"
)

// Ingestor validates and rate-limits device events. It is best-effort: a
// rejected or suppressed event is dropped, never surfaced to an end user.
type Ingestor struct {
	window     time.Duration
	renewAsNew bool
	ignore     *jmespath.JMESPath
	seen       *TTL[string, struct{}]
}

func NewIngestor(cfg types.EngineConfig) (*Ingestor, error) {
	g := &Ingestor{
		window:     cfg.Durations().RateWindow,
		renewAsNew: cfg.RenewAsNew,
		seen:       NewTTL[string, struct{}](),
	}
	if cfg.IgnoreExpr != "" {
		expr, err := jmespath.Compile(cfg.IgnoreExpr)
		if err != nil {
			return nil, types.Err(types.ErrConfiguration, err, "ignore_expr")
		}
		g.ignore = expr
	}
	return g, nil
}

// Admit decides whether an event proceeds to policy evaluation. It returns
// the canonical MAC and true when it does. A false with nil error is a silent
// suppression (ignored action, filtered payload, or rate-limited repeat); an
// error means the event was malformed.
func (g *Ingestor) Admit(ev types.DeviceEvent) (string, bool, error) {
	switch ev.Action {
	case types.ActionAdd:
	case types.ActionRenew:
		if !g.renewAsNew {
			return "", false, nil
		}
	case types.ActionRemove:
		return "", false, nil
	default:
		return "", false, types.Err(types.ErrValidation, nil, "unknown action %q", ev.Action)
	}

	if g.ignore != nil && ev.Raw != nil {
		v, err := g.ignore.Search(ev.Raw)
		if err != nil {
			log.WithError(err).Warn("ignore_expr evaluation failed; event kept")
		} else if matched, ok := v.(bool); ok && matched {
			return "", false, nil
		}
	}

	mac, err := types.NormalizeMAC(ev.MAC)
	if err != nil {
		return "", false, err
	}

	// Idempotent drop: one policy evaluation per MAC per window.
	if _, hit := g.seen.Get(mac); hit {
		return mac, false, nil
	}
	g.seen.Set(mac, struct{}{}, g.window)
	return mac, true, nil
}
