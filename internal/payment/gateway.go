package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"healink-eventcore/pkg/xerrors"
)

// IntentRequest is what the gateway needs to open a payment intent.
type IntentRequest struct {
	InternalID  uuid.UUID
	Amount      int64
	Currency    string
	Description string
	Metadata    map[string]string
}

// IntentResponse is the gateway's answer: its own reference for the intent
// plus the raw provider payload, opaque to this core.
type IntentResponse struct {
	Reference string
	Raw       json.RawMessage
}

// CallbackResult is the verified content of an asynchronous gateway callback.
type CallbackResult struct {
	Reference string
	Succeeded bool
	Reason    string
}

// Gateway is the external payment provider, per provider. Wire formats stay
// behind this port.
type Gateway interface {
	Name() string
	CreateIntent(ctx context.Context, req IntentRequest) (IntentResponse, error)
	// VerifyCallback authenticates and parses a callback payload. A bad
	// signature is a transport error; valid payloads referencing nothing are
	// caught later by reconciliation.
	VerifyCallback(payload []byte, signature string) (CallbackResult, error)
}

// hmacCallback is the provider-agnostic callback body used by HMACGateway.
type hmacCallback struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Reason    string `json:"reason,omitempty"`
}

// HMACGateway is a reference Gateway whose callbacks are authenticated with
// HMAC-SHA256 over the raw payload, the way MoMo-style IPN endpoints work.
// CreateIntent derives the gateway reference from the internal id, which makes
// it usable as an end-to-end stub in development environments.
type HMACGateway struct {
	GatewayName string
	Secret      string
}

func (g *HMACGateway) Name() string { return g.GatewayName }

func (g *HMACGateway) CreateIntent(ctx context.Context, req IntentRequest) (IntentResponse, error) {
	if err := ctx.Err(); err != nil {
		return IntentResponse{}, fmt.Errorf("%w: gateway create intent: %v", xerrors.ErrTransport, err)
	}
	ref := fmt.Sprintf("%s-%s", g.GatewayName, req.InternalID)
	raw, err := json.Marshal(map[string]any{
		"reference": ref,
		"pay_url":   fmt.Sprintf("https://pay.%s.example/%s", g.GatewayName, ref),
		"amount":    req.Amount,
		"currency":  req.Currency,
	})
	if err != nil {
		return IntentResponse{}, fmt.Errorf("%w: encode gateway response: %v", xerrors.ErrSerialization, err)
	}
	return IntentResponse{Reference: ref, Raw: raw}, nil
}

func (g *HMACGateway) VerifyCallback(payload []byte, signature string) (CallbackResult, error) {
	mac := hmac.New(sha256.New, []byte(g.Secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return CallbackResult{}, fmt.Errorf("%w: callback signature mismatch", xerrors.ErrTransport)
	}

	var cb hmacCallback
	if err := json.Unmarshal(payload, &cb); err != nil {
		return CallbackResult{}, fmt.Errorf("%w: decode callback: %v", xerrors.ErrSerialization, err)
	}
	return CallbackResult{
		Reference: cb.Reference,
		Succeeded: cb.Status == "success",
		Reason:    cb.Reason,
	}, nil
}

// SignCallback produces the signature a gateway would attach.
func (g *HMACGateway) SignCallback(payload []byte) string {
	mac := hmac.New(sha256.New, []byte(g.Secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
