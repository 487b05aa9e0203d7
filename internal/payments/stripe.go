// Package payments integrates Stripe: credit purchases via Checkout,
// freelancer onboarding via Connect Express, and payout transfers. Webhooks
// are the source of truth for money movements; the REST handlers only start
// flows.
package payments

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/account"
	"github.com/stripe/stripe-go/v81/accountlink"
	"github.com/stripe/stripe-go/v81/checkout/session"
	"github.com/stripe/stripe-go/v81/transfer"

	"github.com/crafted/backend/internal/models"
)

// StripeClient wraps the Stripe SDK calls the platform makes. All amounts
// are cents.
type StripeClient struct {
	PricePerCreditCents int64
	SuccessURL          string
	CancelURL           string
	ConnectRefreshURL   string
	ConnectReturnURL    string
}

// NewStripeClient sets the package-level API key and returns the wrapper.
func NewStripeClient(apiKey string, pricePerCreditCents int64, successURL, cancelURL, connectRefreshURL, connectReturnURL string) *StripeClient {
	stripe.Key = apiKey
	return &StripeClient{
		PricePerCreditCents: pricePerCreditCents,
		SuccessURL:          successURL,
		CancelURL:           cancelURL,
		ConnectRefreshURL:   connectRefreshURL,
		ConnectReturnURL:    connectReturnURL,
	}
}

// CreateCheckoutSession opens a Checkout session for a credit purchase. The
// user ID rides in client_reference_id and the credit count in metadata so
// the webhook can complete the purchase without any server-side session
// state.
func (c *StripeClient) CreateCheckoutSession(ctx context.Context, user *models.User, credits int) (sessionID, url string, err error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(c.SuccessURL),
		CancelURL:         stripe.String(c.CancelURL),
		ClientReferenceID: stripe.String(user.ID.String()),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(string(stripe.CurrencyUSD)),
				UnitAmount: stripe.Int64(c.PricePerCreditCents),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String("Design credit"),
				},
			},
			Quantity: stripe.Int64(int64(credits)),
		}},
	}
	params.Context = ctx
	params.AddMetadata("credits", strconv.Itoa(credits))
	if user.StripeCustomerID != "" {
		params.Customer = stripe.String(user.StripeCustomerID)
	}

	s, err := session.New(params)
	if err != nil {
		return "", "", fmt.Errorf("create checkout session: %w", err)
	}
	return s.ID, s.URL, nil
}

// CreateExpressAccount creates the freelancer's Connect Express account.
func (c *StripeClient) CreateExpressAccount(ctx context.Context, email string) (string, error) {
	params := &stripe.AccountParams{
		Type:  stripe.String(string(stripe.AccountTypeExpress)),
		Email: stripe.String(email),
	}
	params.Context = ctx
	acct, err := account.New(params)
	if err != nil {
		return "", fmt.Errorf("create express account: %w", err)
	}
	return acct.ID, nil
}

// CreateAccountLink returns a one-time onboarding URL for the account.
func (c *StripeClient) CreateAccountLink(ctx context.Context, accountID string) (string, error) {
	params := &stripe.AccountLinkParams{
		Account:    stripe.String(accountID),
		RefreshURL: stripe.String(c.ConnectRefreshURL),
		ReturnURL:  stripe.String(c.ConnectReturnURL),
		Type:       stripe.String("account_onboarding"),
	}
	params.Context = ctx
	link, err := accountlink.New(params)
	if err != nil {
		return "", fmt.Errorf("create account link: %w", err)
	}
	return link.URL, nil
}

// Transfer moves the payout's net amount to the freelancer's Connect
// account. The payout ID doubles as the idempotency key so a retried job
// never pays twice.
func (c *StripeClient) Transfer(ctx context.Context, connectID string, netCents int64, payoutID uuid.UUID) (string, error) {
	params := &stripe.TransferParams{
		Amount:      stripe.Int64(netCents),
		Currency:    stripe.String(string(stripe.CurrencyUSD)),
		Destination: stripe.String(connectID),
	}
	params.Context = ctx
	params.SetIdempotencyKey(payoutID.String())
	params.AddMetadata("payout_id", payoutID.String())

	tr, err := transfer.New(params)
	if err != nil {
		return "", fmt.Errorf("create transfer: %w", err)
	}
	return tr.ID, nil
}
