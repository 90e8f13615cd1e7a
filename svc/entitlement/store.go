package entitlement

import "context"

// MaxSecondaryUsers is the number of secondary users a main account may hold.
const MaxSecondaryUsers = 4

// Store persists accounts and their billing log.
//
// ApplyUpdate must perform the conditional write atomically: the account is
// updated only if its LastReconciledAt is not after u.ReconciledAt and its
// current state is one of u.From. When nothing is written the store reports
// ErrAccountNotFound, ErrStaleEvent or ErrStateMismatch.
type Store interface {
	Create(ctx context.Context, acc *Account) error
	Get(ctx context.Context, id string) (*Account, error)
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByStripeCustomer(ctx context.Context, customerID string) (*Account, error)
	FindByProvider(ctx context.Context, ref ProviderRef) (*Account, error)
	SetStripeCustomer(ctx context.Context, id, customerID string) error
	ApplyUpdate(ctx context.Context, id string, u Update) (*Account, error)
	SetPaymentFailed(ctx context.Context, id string, failed bool) error

	// ListByState returns main accounts currently in state s.
	ListByState(ctx context.Context, s State) ([]*Account, error)

	// CreateSecondary inserts acc unless its main account already holds max secondaries.
	CreateSecondary(ctx context.Context, acc *Account, max int) error
	ListSecondaries(ctx context.Context, mainID string) ([]*Account, error)
	DeleteSecondary(ctx context.Context, mainID, id string) error

	// AppendTransaction inserts tx unless a transaction with the same Key exists.
	AppendTransaction(ctx context.Context, tx *Transaction) (inserted bool, err error)
	ListTransactions(ctx context.Context, userID string) ([]*Transaction, error)
}
