package par

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"parsvc/pkg/clients"
	"parsvc/pkg/middleware"
	"parsvc/pkg/problems"
	"parsvc/pkg/tenants"
)

// maxBodyBytes bounds the pushed form body.
const maxBodyBytes = 64 << 10

// ClientValidator authenticates the client of an inbound request.
type ClientValidator interface {
	Validate(r *http.Request) clients.Verdict
}

// Endpoint serves POST /par.
type Endpoint struct {
	validator   ClientValidator
	generator   ResponseGenerator
	coordinator *Coordinator
	responses   ResponseBuilder
	log         *zap.SugaredLogger
	now         func() time.Time
}

func NewEndpoint(v ClientValidator, g ResponseGenerator, c *Coordinator, b ResponseBuilder, log *zap.SugaredLogger) *Endpoint {
	return &Endpoint{validator: v, generator: g, coordinator: c, responses: b, log: log, now: time.Now}
}

// RegisterRoutes mounts the PAR endpoint. mw is applied to the route only
// (DPoP proof verification).
//
// POST /par  body: application/x-www-form-urlencoded authorization request
func RegisterRoutes(r chi.Router, e *Endpoint, mw ...func(http.Handler) http.Handler) {
	r.Group(func(pr chi.Router) {
		pr.Use(chimw.RequestSize(maxBodyBytes))
		pr.Use(chimw.AllowContentType("application/x-www-form-urlencoded"))
		pr.Use(chimw.NoCache)
		pr.Use(mw...)
		pr.Post("/par", e.serve(e.Push))
	})
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// serve renders every error returned by h as an opaque server error.
func (e *Endpoint) serve(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			reqID := middleware.RequestIDFrom(r.Context())
			e.log.Errorw("pushed authorization request failed", "request_id", reqID, "err", err)
			trace.SpanFromContext(r.Context()).RecordError(err)
			problems.Write(w, problems.ServerError(reqID))
		}
	}
}

// Push runs the admission workflow for one request. Client faults are
// written to w and nil is returned; server faults are returned.
func (e *Endpoint) Push(w http.ResponseWriter, r *http.Request) error {
	state, err := e.push(w, r)
	observeOutcome(state)
	return err
}

func (e *Endpoint) push(w http.ResponseWriter, r *http.Request) (State, error) {
	ctx := r.Context()
	log := e.log.With("request_id", middleware.RequestIDFrom(ctx))

	// received -> validating
	verdict := e.validator.Validate(r)
	if !verdict.Valid {
		if verdict.ErrorCode == clients.ErrCodeServerError {
			return StateServerFault, e.responses.BuildServerError(verdict)
		}
		log.Debugw("client rejected", "code", verdict.ErrorCode, "msg", verdict.ErrorMessage)
		e.writeClientError(w, r, e.responses.BuildClientError(verdict))
		return StateRejectedInvalidClient, nil
	}
	if err := r.ParseForm(); err != nil {
		e.writeClientError(w, r, e.responses.BuildAdmissionError(clientError(ErrCodeInvalidRequest, "Malformed request body.")))
		return StateRejectedInvalidRequest, nil
	}
	if err := CheckRequestURI(r.Form); err != nil {
		var ae *AdmissionError
		errors.As(err, &ae)
		log.Debugw("request_uri supplied to PAR", "client_id", verdict.ClientID)
		e.writeClientError(w, r, e.responses.BuildAdmissionError(ae))
		return StateRejectedRequestURIPresent, nil
	}

	// validated
	params, err := Collect(r.Form)
	if err != nil {
		return StateServerFault, err
	}
	if ae := bindDPoP(ctx, params); ae != nil {
		e.writeClientError(w, r, e.responses.BuildAdmissionError(ae))
		return StateRejectedInvalidRequest, nil
	}
	// The validator has matched every client_id value against the
	// authenticated client; the verdict is authoritative.
	clientID := verdict.ClientID
	if clientID == "" {
		clientID = params[ParamClientID]
	}
	tenantID := tenants.SuperTenantID
	if t, ok := middleware.TenantFrom(ctx); ok {
		tenantID = t.ID
	}

	// One expiry per admission, shared by the response and the record.
	data, err := e.generator.Generate(ctx, e.now())
	if err != nil {
		return StateServerFault, serverError("identifier generation failed", err)
	}
	resp := e.responses.BuildSuccess(data.ID, data.ExpiresAt)

	// persisting
	if err := e.coordinator.Admit(ctx, PushedAuthRequest{
		ID:         data.ID,
		ClientID:   clientID,
		Parameters: params,
		ExpiresAt:  data.ExpiresAt,
		TenantID:   tenantID,
	}); err != nil {
		return StatePersistenceFailed, err
	}

	log.Infow("pushed authorization request admitted", "id", data.ID, "client_id", clientID, "tenant_id", tenantID, "expires_at", data.ExpiresAt)
	resp.Write(w)
	return StateAdmitted, nil
}

// bindDPoP records the verified DPoP key thumbprint as dpop_jkt, rejecting a
// client-supplied dpop_jkt that names another key.
func bindDPoP(ctx context.Context, params map[string]string) *AdmissionError {
	jkt := middleware.DPoPJKTFrom(ctx)
	if jkt == "" {
		return nil
	}
	if got, ok := params[ParamDPoPJKT]; ok && got != jkt {
		return clientError(ErrCodeInvalidDPoPProof, "dpop_jkt does not match the DPoP proof key.")
	}
	params[ParamDPoPJKT] = jkt
	return nil
}

func (e *Endpoint) writeClientError(w http.ResponseWriter, r *http.Request, resp Response) {
	if resp.Status == http.StatusUnauthorized && r.Header.Get("Authorization") != "" {
		w.Header().Set("WWW-Authenticate", `Basic realm="par"`)
	}
	resp.Write(w)
}
