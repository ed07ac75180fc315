package clients

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"parsvc/pkg/middleware"
	"parsvc/pkg/tenants"
)

// OAuth 2.0 error codes produced by client validation.
const (
	ErrCodeInvalidClient  = "invalid_client"
	ErrCodeInvalidRequest = "invalid_request"
	ErrCodeServerError    = "server_error"
)

const jwtBearerAssertionType = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"

// Verdict is the outcome of client validation.
type Verdict struct {
	Valid        bool
	ClientID     string // authenticated client, set when Valid
	ErrorCode    string
	ErrorMessage string
}

func invalid(code, format string, args ...any) Verdict {
	return Verdict{ErrorCode: code, ErrorMessage: fmt.Sprintf(format, args...)}
}

// Validator authenticates the client of an inbound back-channel request and
// checks the request's client_id and redirect_uri against its registration.
type Validator struct {
	reg       Registry
	keys      KeySetFetcher
	audiences []string
	skew      time.Duration
	log       *zap.SugaredLogger
}

// NewValidator builds a Validator. Client assertions must name one of
// audiences (the issuer and the PAR endpoint URL).
func NewValidator(reg Registry, keys KeySetFetcher, audiences []string, skew time.Duration, log *zap.SugaredLogger) *Validator {
	return &Validator{reg: reg, keys: keys, audiences: audiences, skew: skew, log: log}
}

type credentials struct {
	method    AuthMethod
	clientID  string
	secret    string
	assertion string
}

// Validate never returns an error: infrastructure failures are reported as
// a server_error verdict.
func (v *Validator) Validate(r *http.Request) Verdict {
	if err := r.ParseForm(); err != nil {
		return invalid(ErrCodeInvalidRequest, "Malformed request body.")
	}
	creds, verdict := extractCredentials(r)
	if creds == nil {
		return verdict
	}

	tenantID := tenants.SuperTenantID
	if t, ok := middleware.TenantFrom(r.Context()); ok {
		tenantID = t.ID
	}

	client, err := v.reg.GetClient(r.Context(), tenantID, creds.clientID)
	if errors.Is(err, ErrClientNotFound) {
		return invalid(ErrCodeInvalidClient, "A valid OAuth client could not be found for client_id: %s", creds.clientID)
	}
	if err != nil {
		v.log.Errorw("client lookup", "client_id", creds.clientID, "tenant_id", tenantID, "err", err)
		return invalid(ErrCodeServerError, "Error while retrieving client information.")
	}
	if client.AuthMethod != creds.method {
		return invalid(ErrCodeInvalidClient, "Client authentication method %s is not allowed for client_id: %s", creds.method, creds.clientID)
	}

	switch creds.method {
	case AuthMethodSecretBasic, AuthMethodSecretPost:
		if client.SecretHash == "" || bcrypt.CompareHashAndPassword([]byte(client.SecretHash), []byte(creds.secret)) != nil {
			return invalid(ErrCodeInvalidClient, "Client credentials are invalid.")
		}
	case AuthMethodPrivateKeyJWT:
		if vd := v.verifyAssertion(r, client, creds.assertion); !vd.Valid {
			return vd
		}
	}

	// r.Form holds body and query values alike; every value is checked.
	for _, id := range r.Form["client_id"] {
		if id != client.ID {
			return invalid(ErrCodeInvalidRequest, "client_id does not match the authenticated client.")
		}
	}
	for _, ru := range r.Form["redirect_uri"] {
		if !client.AllowsRedirect(ru) {
			return invalid(ErrCodeInvalidRequest, "Invalid redirect_uri for client_id: %s", client.ID)
		}
	}
	return Verdict{Valid: true, ClientID: client.ID}
}

func extractCredentials(r *http.Request) (*credentials, Verdict) {
	var found []credentials

	if id, secret, ok := r.BasicAuth(); ok {
		// RFC 6749 section 2.3.1: both parts are form-urlencoded
		uid, err1 := url.QueryUnescape(id)
		usecret, err2 := url.QueryUnescape(secret)
		if err1 != nil || err2 != nil {
			return nil, invalid(ErrCodeInvalidClient, "Malformed Authorization header.")
		}
		found = append(found, credentials{method: AuthMethodSecretBasic, clientID: uid, secret: usecret})
	}
	form := r.PostForm
	if form.Has("client_assertion") || form.Has("client_assertion_type") {
		if form.Get("client_assertion_type") != jwtBearerAssertionType {
			return nil, invalid(ErrCodeInvalidClient, "Unsupported client_assertion_type.")
		}
		raw := form.Get("client_assertion")
		tok, err := jwt.ParseInsecure([]byte(raw))
		if err != nil || tok.Issuer() == "" {
			return nil, invalid(ErrCodeInvalidClient, "Malformed client_assertion.")
		}
		found = append(found, credentials{method: AuthMethodPrivateKeyJWT, clientID: tok.Issuer(), assertion: raw})
	}
	if form.Has("client_secret") {
		found = append(found, credentials{method: AuthMethodSecretPost, clientID: form.Get("client_id"), secret: form.Get("client_secret")})
	}

	switch len(found) {
	case 0:
		if id := form.Get("client_id"); id != "" {
			return &credentials{method: AuthMethodNone, clientID: id}, Verdict{}
		}
		return nil, invalid(ErrCodeInvalidClient, "Client ID not found in the request.")
	case 1:
		if strings.TrimSpace(found[0].clientID) == "" {
			return nil, invalid(ErrCodeInvalidClient, "Client ID not found in the request.")
		}
		return &found[0], Verdict{}
	default:
		return nil, invalid(ErrCodeInvalidRequest, "More than one client authentication method is used.")
	}
}

func (v *Validator) verifyAssertion(r *http.Request, client Client, assertion string) Verdict {
	set, err := v.keys.Fetch(r.Context(), client.JWKSURL)
	if err != nil {
		v.log.Errorw("jwks fetch", "client_id", client.ID, "jwks_uri", client.JWKSURL, "err", err)
		return invalid(ErrCodeServerError, "Error while retrieving client keys.")
	}
	tok, err := jwt.Parse([]byte(assertion),
		jwt.WithKeySet(set, jws.WithInferAlgorithmFromKey(true)),
		jwt.WithIssuer(client.ID),
		jwt.WithSubject(client.ID),
		jwt.WithValidate(true),
		jwt.WithAcceptableSkew(v.skew),
	)
	if err != nil {
		return invalid(ErrCodeInvalidClient, "Client assertion is invalid.")
	}
	if tok.Expiration().IsZero() {
		return invalid(ErrCodeInvalidClient, "Client assertion must carry exp.")
	}
	for _, aud := range tok.Audience() {
		if slices.Contains(v.audiences, aud) {
			return Verdict{Valid: true, ClientID: client.ID}
		}
	}
	return invalid(ErrCodeInvalidClient, "Client assertion audience is invalid.")
}
