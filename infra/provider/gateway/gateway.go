// Package gateway implements the card payment gateway adapter. Webhook
// payloads are authenticated with an HMAC-SHA256 signature over the raw body.
package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/finwire/backoffice/pkg/currency"
	"github.com/finwire/backoffice/pkg/provider"
	"github.com/google/uuid"
)

// ErrInvalidSignature is returned when the webhook signature does not match.
var ErrInvalidSignature = errors.New("gateway: invalid webhook signature")

type webhookPayload struct {
	Status         string `json:"status"`
	CapturedAmount int64  `json:"captured_amount"`
	Currency       string `json:"currency"`
	Reference      string `json:"reference"`
	DeclineCode    string `json:"decline_code"`
	OperationID    string `json:"operation_id"`
}

// Gateway verifies gateway webhooks against a shared signing secret.
type Gateway struct {
	secret []byte
}

// New creates a gateway adapter with the given signing secret.
func New(signingSecret string) *Gateway {
	return &Gateway{secret: []byte(signingSecret)}
}

var _ provider.PaymentGateway = (*Gateway)(nil)

// VerifyWebhook checks the hex-encoded HMAC-SHA256 signature of the raw
// payload, then normalizes the capture result.
func (g *Gateway) VerifyWebhook(
	ctx context.Context,
	payload []byte,
	signature string,
) (*provider.GatewayResult, error) {
	mac := hmac.New(sha256.New, g.secret)
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return nil, ErrInvalidSignature
	}

	var body webhookPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, fmt.Errorf("gateway: malformed webhook payload: %w", err)
	}
	opID, err := uuid.Parse(body.OperationID)
	if err != nil {
		return nil, fmt.Errorf("gateway: bad operation id %q: %w", body.OperationID, err)
	}
	return &provider.GatewayResult{
		Success:        body.Status == "captured",
		CapturedAmount: body.CapturedAmount,
		Currency:       currency.Code(body.Currency),
		Reference:      body.Reference,
		DeclineCode:    body.DeclineCode,
		OperationID:    opID,
	}, nil
}

// Sign computes the signature a caller would attach to payload. Exposed for
// sandbox tooling and tests.
func (g *Gateway) Sign(payload []byte) string {
	mac := hmac.New(sha256.New, g.secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
