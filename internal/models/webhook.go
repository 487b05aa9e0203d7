package models

// Webhook providers, the partition key of the webhook_events idempotency
// table.
const (
	WebhookProviderStripe = "stripe"
	WebhookProviderSlack  = "slack"
)
