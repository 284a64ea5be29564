package domain

// AuthOutcome classifies a single request at the authentication gate
type AuthOutcome int

const (
	// AuthRetry asks the client to (re-)supply credentials
	AuthRetry AuthOutcome = iota
	// AuthSuccess lets the request through to its route
	AuthSuccess
	// AuthFail rejects the request; the address is banned
	AuthFail
)

func (o AuthOutcome) String() string {
	switch o {
	case AuthSuccess:
		return "success"
	case AuthRetry:
		return "retry"
	case AuthFail:
		return "fail"
	default:
		return "unknown"
	}
}
