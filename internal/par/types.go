// Package par admits OAuth 2.0 Pushed Authorization Requests (RFC 9126):
// it validates the pushing client, stores the request parameters under a
// short-lived opaque identifier and returns that identifier as a request_uri.
package par

import (
	"errors"
	"fmt"
)

// Form parameter names the admission workflow inspects.
const (
	ParamRequestURI = "request_uri"
	ParamClientID   = "client_id"
	ParamDPoPJKT    = "dpop_jkt"
)

// OAuth 2.0 error codes returned by the endpoint.
const (
	ErrCodeInvalidRequest   = "invalid_request"
	ErrCodeInvalidClient    = "invalid_client"
	ErrCodeInvalidDPoPProof = "invalid_dpop_proof"
	ErrCodeServerError      = "server_error"
)

// RequestURINotAllowed is the fixed error_description for pushes that carry request_uri.
const RequestURINotAllowed = "request.with.request_uri.not.allowed"

var (
	// ErrMalformedParameter reports a form key without any value.
	ErrMalformedParameter = errors.New("malformed parameter")
	// ErrPersistenceFailure reports a failed durable or cache write.
	ErrPersistenceFailure = errors.New("error occurred in persisting PAR request")
	// ErrRequestNotFound is returned by stores for unknown or expired identifiers.
	ErrRequestNotFound = errors.New("pushed authorization request not found")
)

// PushedAuthRequest is an admitted request. It is never mutated after persistence.
type PushedAuthRequest struct {
	ID         string            `json:"id"`
	ClientID   string            `json:"client_id"`
	Parameters map[string]string `json:"parameters"`
	ExpiresAt  int64             `json:"expires_at"` // ms since epoch, UTC
	TenantID   int               `json:"tenant_id"`
}

// Fault says who is responsible for a failed admission.
type Fault int

const (
	ClientFault Fault = iota + 1
	ServerFault
)

func (f Fault) String() string {
	switch f {
	case ClientFault:
		return "client"
	case ServerFault:
		return "server"
	default:
		return "unknown"
	}
}

// AdmissionError is a failed admission. Client faults carry an OAuth error
// code and description that are shown to the client; server faults are only
// logged.
type AdmissionError struct {
	Fault   Fault
	Code    string
	Message string
	Err     error
}

func (e *AdmissionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s fault %s: %s: %v", e.Fault, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s fault %s: %s", e.Fault, e.Code, e.Message)
}

func (e *AdmissionError) Unwrap() error { return e.Err }

func clientError(code, msg string) *AdmissionError {
	return &AdmissionError{Fault: ClientFault, Code: code, Message: msg}
}

func serverError(msg string, err error) *AdmissionError {
	return &AdmissionError{Fault: ServerFault, Code: ErrCodeServerError, Message: msg, Err: err}
}

// IsServerFault reports whether err is (or wraps) a server-side AdmissionError.
func IsServerFault(err error) bool {
	var ae *AdmissionError
	return errors.As(err, &ae) && ae.Fault == ServerFault
}
