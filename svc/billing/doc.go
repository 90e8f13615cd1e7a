// Package billing connects Stripe and PayPal to account entitlements.
//
// Inbound webhooks are verified, claimed by provider event id through an
// idempotency store, translated into entitlement transitions and applied
// with the event time as the ordering key. Replays are answered as
// duplicates, older events than the last applied one are skipped as stale,
// and events that reference no known account are acknowledged and logged.
//
// Outbound flows create Stripe checkout sessions, PayPal subscriptions and
// one-time PayPal orders. A captured order activates a prepaid plan that the
// trial sweeper expires at the end of its period.
//
// Every provider call is bounded by the configured provider timeout.
package billing
