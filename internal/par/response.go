package par

import (
	"encoding/json"
	"net/http"

	"parsvc/pkg/clients"
)

// SuccessBody is the 201 body. ExpiresIn carries the absolute expiry in
// milliseconds since the epoch.
type SuccessBody struct {
	RequestURI string `json:"request_uri"`
	ExpiresIn  int64  `json:"expires_in"`
}

// ErrorBody is the OAuth 2.0 error body for client faults.
type ErrorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// Response is a status and JSON body not yet written.
type Response struct {
	Status int
	Body   any
}

func (resp Response) Write(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(resp.Status)
	_ = json.NewEncoder(w).Encode(resp.Body)
}

// ResponseBuilder renders admission outcomes.
type ResponseBuilder struct {
	prefix string
}

func NewResponseBuilder(requestURIPrefix string) ResponseBuilder {
	return ResponseBuilder{prefix: requestURIPrefix}
}

// RequestURI is the handle a client presents at the authorization endpoint.
func (b ResponseBuilder) RequestURI(id string) string { return b.prefix + id }

func (b ResponseBuilder) BuildSuccess(id string, expiresAt int64) Response {
	return Response{
		Status: http.StatusCreated,
		Body:   SuccessBody{RequestURI: b.RequestURI(id), ExpiresIn: expiresAt},
	}
}

// BuildClientError maps a failed verdict to 401 for invalid_client and 400
// for every other code.
func (b ResponseBuilder) BuildClientError(v clients.Verdict) Response {
	return b.errorResponse(v.ErrorCode, v.ErrorMessage)
}

// BuildServerError turns a server_error verdict into a server fault; the
// transport layer renders it.
func (b ResponseBuilder) BuildServerError(v clients.Verdict) error {
	return serverError("client validation failed", &verdictError{v})
}

// BuildAdmissionError renders a client-fault AdmissionError.
func (b ResponseBuilder) BuildAdmissionError(e *AdmissionError) Response {
	return b.errorResponse(e.Code, e.Message)
}

func (b ResponseBuilder) errorResponse(code, desc string) Response {
	status := http.StatusBadRequest
	if code == ErrCodeInvalidClient {
		status = http.StatusUnauthorized
	}
	return Response{Status: status, Body: ErrorBody{Error: code, ErrorDescription: desc}}
}

type verdictError struct{ v clients.Verdict }

func (e *verdictError) Error() string { return e.v.ErrorCode + ": " + e.v.ErrorMessage }
