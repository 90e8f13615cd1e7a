// Package entitlement owns the per-user account record: plan type, cached
// limits, billing provider reference and the family of secondary users.
//
// Every plan change goes through ApplyPlanTransition. A Transition names the
// event that caused it; the service turns it into a single conditional Update
// that the Store applies atomically, guarded by event ordering
// (LastReconciledAt) and by the states the event may fire from:
//
//	checkout_completed, renewed   any state
//	provider_cancelled            paid_stripe, paid_paypal
//	trial_expired                 trial
//	prepaid_expired               prepaid
//
// Replaying the same transition is harmless: the update writes the same values
// and the payment record is keyed by (user, provider reference, period start).
//
// Stores live in the store subpackages: memstore for tests and development,
// pgstore for PostgreSQL and mongostore for MongoDB.
package entitlement
