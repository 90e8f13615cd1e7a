// Package plan holds the static plan catalog: the quota each tier grants and
// the mapping between purchasable offers ({plan, months}) and the identifiers
// Stripe and PayPal use for them.
//
// Quotas never change at runtime. Accounts cache the result of LimitsFor at
// every plan transition, so a stored account must always satisfy
//
//	account.Limits() == plan.LimitsFor(account.PlanType)
//
// The provider table is loaded from YAML with LoadCatalog or LoadCatalogFile.
package plan
