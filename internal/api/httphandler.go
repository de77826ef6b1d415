package api

import (
	"io"
	"net/http"

	"gatekeeper/internal/approval"
	"gatekeeper/internal/command"
	"gatekeeper/internal/flow"
	"gatekeeper/internal/members"
	"gatekeeper/internal/types"

	"github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
)

const IntakeTokenHdrName = "x-intake-token"

// Handler receives device-seen events from the lease bridge and drives them
// through ingest → policy → coordinator.
type Handler struct {
	Token     string
	Ingest    *flow.Ingestor
	Members   *members.Service
	Commands  *command.Processor
	Coord     *approval.Coordinator
	Durations types.Durations
}

func NewHandler(token string, ingest *flow.Ingestor, m *members.Service,
	commands *command.Processor, coord *approval.Coordinator, dur types.Durations) *Handler {
	return &Handler{
		Token:     token,
		Ingest:    ingest,
		Members:   m,
		Commands:  commands,
		Coord:     coord,
		Durations: dur,
	}
}

func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/event", h.handleEvent)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func (h *Handler) handleEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.Token != "" && r.Header.Get(IntakeTokenHdrName) != h.Token {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "read error", http.StatusBadRequest)
		return
	}
	defer func() {
		_ = r.Body.Close()
	}()
	if len(body) == 0 {
		http.Error(w, "empty body", http.StatusBadRequest)
		return
	}
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	action, err := types.ParseEventAction(str(payload, "action"))
	if err != nil {
		http.Error(w, "invalid action", http.StatusBadRequest)
		return
	}
	ev := types.DeviceEvent{
		Action:   action,
		MAC:      str(payload, "mac"),
		IP:       str(payload, "ip"),
		Hostname: str(payload, "hostname"),
		Raw:      payload,
	}

	ctx := r.Context()
	mac, proceed, err := h.Ingest.Admit(ev)
	if err != nil {
		// Malformed event: dropped, the bridge gets told, nobody else does.
		log.WithError(err).WithField("mac", ev.MAC).Info("event rejected")
		http.Error(w, "invalid event", http.StatusBadRequest)
		return
	}
	if !proceed {
		if err := writeJSON(w, http.StatusAccepted, map[string]any{"status": "suppressed"}); err != nil {
			http.Error(w, "failed to write response", http.StatusInternalServerError)
		}
		return
	}

	snap, err := h.Members.Snapshot(ctx, mac)
	if err != nil {
		log.WithError(err).WithField("mac", mac).Error("snapshot read failed")
		http.Error(w, "store unreachable", http.StatusInternalServerError)
		return
	}
	dec := flow.Evaluate(snap, h.Commands.Mode(), h.Durations)
	if err := h.Coord.Execute(ctx, mac, ev, dec); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"mac":      mac,
			"decision": flow.KindTextMap[dec.Kind],
		}).Error("decision execution failed")
		http.Error(w, "execution failed", http.StatusInternalServerError)
		return
	}
	if err := writeJSON(w, http.StatusAccepted, map[string]any{"status": flow.KindTextMap[dec.Kind]}); err != nil {
		http.Error(w, "failed to write response", http.StatusInternalServerError)
	}
}

func str(payload map[string]any, key string) string {
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(v)
}
