package payment

import (
	"testing"

	stripe "github.com/stripe/stripe-go/v78"
)

func TestFromSession(t *testing.T) {
	sess := &stripe.CheckoutSession{
		Status:        stripe.CheckoutSessionStatusComplete,
		PaymentStatus: stripe.CheckoutSessionPaymentStatusPaid,
		PaymentLink:   &stripe.PaymentLink{ID: "plink_123"},
	}
	vp := fromSession(sess)
	if vp.Status != "complete" || vp.PaymentStatus != "paid" || vp.PaymentLinkID != "plink_123" {
		t.Fatalf("unexpected mapping: %+v", vp)
	}
}

func TestFromSessionWithoutPaymentLink(t *testing.T) {
	// Sessions created outside a payment link carry no link; the empty id
	// maps to no tier downstream, which is the failure we want.
	sess := &stripe.CheckoutSession{
		Status:        stripe.CheckoutSessionStatusComplete,
		PaymentStatus: stripe.CheckoutSessionPaymentStatusPaid,
	}
	if vp := fromSession(sess); vp.PaymentLinkID != "" {
		t.Fatalf("expected empty link id, got %q", vp.PaymentLinkID)
	}
}
