package par

// State is a step of the per-request admission workflow.
type State string

const (
	StateReceived                  State = "received"
	StateValidating                State = "validating"
	StateRejectedInvalidClient     State = "rejected_invalid_client"
	StateRejectedRequestURIPresent State = "rejected_request_uri_present"
	StateRejectedInvalidRequest    State = "rejected_invalid_request" // malformed body, conflicting dpop_jkt
	StateValidated                 State = "validated"
	StatePersisting                State = "persisting"
	StateAdmitted                  State = "admitted"
	StatePersistenceFailed         State = "persistence_failed"
	StateServerFault               State = "server_fault" // failed before persisting
)

// Terminal reports whether no further transition follows s.
func (s State) Terminal() bool {
	switch s {
	case StateRejectedInvalidClient, StateRejectedRequestURIPresent, StateRejectedInvalidRequest,
		StateAdmitted, StatePersistenceFailed, StateServerFault:
		return true
	}
	return false
}
