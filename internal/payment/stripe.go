// Package payment verifies checkout sessions against Stripe. The verifier
// is a single-attempt check: callers treat any error as a verification
// failure and never retry transparently.
package payment

import (
	"context"
	"errors"
	"fmt"

	stripe "github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"

	"raven-iq-service/internal/app"
)

// StripeVerifier retrieves checkout sessions by id.
type StripeVerifier struct {
	api *client.API
}

func NewStripeVerifier(apiKey string) *StripeVerifier {
	api := &client.API{}
	api.Init(apiKey, nil)
	return &StripeVerifier{api: api}
}

// Retrieve fetches the checkout session and reduces it to the fields the
// lifecycle manager decides on.
func (v *StripeVerifier) Retrieve(ctx context.Context, paymentID string) (app.VerifiedPayment, error) {
	params := &stripe.CheckoutSessionParams{Params: stripe.Params{Context: ctx}}
	sess, err := v.api.CheckoutSessions.Get(paymentID, params)
	if err != nil {
		return app.VerifiedPayment{}, fmt.Errorf("retrieve checkout session: %w", err)
	}
	if sess == nil {
		return app.VerifiedPayment{}, errors.New("empty checkout session")
	}
	return fromSession(sess), nil
}

func fromSession(sess *stripe.CheckoutSession) app.VerifiedPayment {
	vp := app.VerifiedPayment{
		Status:        string(sess.Status),
		PaymentStatus: string(sess.PaymentStatus),
	}
	if sess.PaymentLink != nil {
		vp.PaymentLinkID = sess.PaymentLink.ID
	}
	return vp
}
