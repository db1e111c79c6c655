package order

import (
	"fmt"
	"os"

	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/refund"

	"ms-booking/internal/logger"
)

// InitStripe initializes the Stripe API with the secret key
func InitStripe() {
	stripe.Key = os.Getenv("STRIPE_SECRET_KEY")
}

// StripeGateway executes refunds against the payment intent captured at
// checkout. Payment capture itself happens elsewhere; the booking engine
// only ever asks for money back.
type StripeGateway struct {
	Logger *logger.Logger
}

func NewStripeGateway(lg *logger.Logger) *StripeGateway {
	return &StripeGateway{Logger: lg}
}

func (g *StripeGateway) Refund(paymentIntentID string, amount float64) error {
	g.Logger.Info("PAYMENT", fmt.Sprintf("Requesting refund of %.2f for payment intent %s", amount, paymentIntentID))

	// Convert to cents for Stripe
	amountInCents := int64(amount * 100)

	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(paymentIntentID),
		Amount:        stripe.Int64(amountInCents),
	}

	ref, err := refund.New(params)
	if err != nil {
		g.Logger.Error("PAYMENT", fmt.Sprintf("Refund rejected for payment intent %s: %v", paymentIntentID, err))
		return fmt.Errorf("stripe refund failed: %w", err)
	}

	g.Logger.Info("PAYMENT", fmt.Sprintf("Refund %s created for payment intent %s", ref.ID, paymentIntentID))
	return nil
}
