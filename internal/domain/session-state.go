package domain

// SessionState is the position of a receipt session in its step sequence.
type SessionState int

const (
	SessionNotStarted SessionState = iota
	SessionAwaitingBrandSelection
	SessionAwaitingFormSubmission
	SessionFinalized
	SessionAborted
)

func (s SessionState) String() string {
	switch s {
	case SessionNotStarted:
		return "not_started"
	case SessionAwaitingBrandSelection:
		return "awaiting_brand_selection"
	case SessionAwaitingFormSubmission:
		return "awaiting_form_submission"
	case SessionFinalized:
		return "finalized"
	case SessionAborted:
		return "aborted"
	default:
		return "unknown"
	}
}
