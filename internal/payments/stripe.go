package payments

import (
	"context"

	stripe "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"
)

// StripeClient wraps stripe-go for the fare hold/capture/cancel flow:
// the quoted fare is held when a card ride is requested, captured on
// completion, and released on cancellation.
type StripeClient struct{}

// NewStripeClient initializes the stripe client with the given API key.
func NewStripeClient(apiKey string) *StripeClient {
	stripe.Key = apiKey
	return &StripeClient{}
}

// Hold creates a PaymentIntent with capture_method=manual for the
// quoted fare and returns its ID.
func (s *StripeClient) Hold(ctx context.Context, amountCents int64, currency, customerID string) (string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountCents),
		Currency: stripe.String(currency),
	}
	if customerID != "" {
		params.Customer = stripe.String(customerID)
	}
	params.CaptureMethod = stripe.String(string(stripe.PaymentIntentCaptureMethodManual))
	pi, err := paymentintent.New(params)
	if err != nil {
		return "", err
	}
	return pi.ID, nil
}

// Capture finalizes the held fare once the ride completes.
func (s *StripeClient) Capture(ctx context.Context, transactionID string) error {
	_, err := paymentintent.Capture(transactionID, nil)
	return err
}

// Cancel releases the hold when the ride is cancelled.
func (s *StripeClient) Cancel(ctx context.Context, transactionID string) error {
	_, err := paymentintent.Cancel(transactionID, nil)
	return err
}
