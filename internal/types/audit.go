package types

// Admission outcomes recorded in the audit trail.
const (
	OutcomeApproved    = "approved"
	OutcomeDenied      = "denied"
	OutcomeAutoDenied  = "auto_denied"
	OutcomeAutoAllowed = "auto_allowed"
)

// Via identifies what resolved an admission.
const (
	ViaOperator = "operator"
	ViaTimer    = "timer"
	ViaPolicy   = "policy"
)

// AuditRecord is one resolved admission. Payload holds the originating device
// event, compressed and base64-url encoded (see internal/audit).
type AuditRecord struct {
	At      int64  `json:"at"`
	MAC     string `json:"mac"`
	Outcome string `json:"outcome"`
	Via     string `json:"via"`
	Payload string `json:"payload,omitempty"`
}
