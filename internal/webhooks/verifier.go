package webhooks

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/imaginify/imaginify/backend/go-services/internal/apperror"
	svix "github.com/svix/svix-webhooks/go"
)

// Signature headers defined by the signing scheme.
const (
	HeaderID        = "svix-id"
	HeaderTimestamp = "svix-timestamp"
	HeaderSignature = "svix-signature"
)

// Verifier authenticates deliveries against the shared signing secret
// ("whsec_..."). Timestamps older or newer than five minutes are rejected
// and signatures are compared in constant time by the svix library.
type Verifier struct {
	wh     *svix.Webhook
	cfgErr error
}

// NewVerifier prepares a verifier. An empty or unparsable secret does not
// fail here; every Verify call reports it as a configuration error instead.
func NewVerifier(secret string) *Verifier {
	if secret == "" {
		return &Verifier{cfgErr: apperror.Configuration("WEBHOOK_SECRET is not set")}
	}
	wh, err := svix.NewWebhook(secret)
	if err != nil {
		return &Verifier{cfgErr: &apperror.AppError{Err: apperror.ErrConfiguration, Message: "WEBHOOK_SECRET is invalid", Cause: err}}
	}
	return &Verifier{wh: wh}
}

// ConfigError returns the configuration problem, if any.
func (v *Verifier) ConfigError() error { return v.cfgErr }

// Verify checks secret, headers, body encoding and signature, in that
// order, and returns the typed event.
func (v *Verifier) Verify(headers http.Header, body []byte) (Event, error) {
	if v.cfgErr != nil {
		return nil, v.cfgErr
	}
	if headers.Get(HeaderID) == "" || headers.Get(HeaderTimestamp) == "" || headers.Get(HeaderSignature) == "" {
		return nil, apperror.MissingHeaders("Missing svix headers")
	}
	if !json.Valid(body) {
		return nil, apperror.MalformedBody(errors.New("body is not valid JSON"))
	}
	h := http.Header{}
	h.Set(HeaderID, headers.Get(HeaderID))
	h.Set(HeaderTimestamp, headers.Get(HeaderTimestamp))
	h.Set(HeaderSignature, headers.Get(HeaderSignature))
	if err := v.wh.Verify(body, h); err != nil {
		return nil, apperror.SignatureInvalid(err)
	}
	return ParseEvent(body)
}
