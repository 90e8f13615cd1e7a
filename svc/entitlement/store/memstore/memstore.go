// Package memstore is an in-process entitlement.Store for tests and local development.
package memstore

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/dmitrymomot/labgrid/svc/entitlement"
)

// Store keeps accounts and transactions in maps guarded by a mutex.
// Returned accounts are copies.
type Store struct {
	mu       sync.RWMutex
	accounts map[string]*entitlement.Account
	txs      []*entitlement.Transaction
	txKeys   map[string]struct{}
}

var _ entitlement.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		accounts: make(map[string]*entitlement.Account),
		txKeys:   make(map[string]struct{}),
	}
}

func clone(a *entitlement.Account) *entitlement.Account {
	c := *a
	return &c
}

func (s *Store) emailTaken(email string) bool {
	for _, a := range s.accounts {
		if strings.EqualFold(a.Email, email) {
			return true
		}
	}
	return false
}

func (s *Store) Create(_ context.Context, acc *entitlement.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.emailTaken(acc.Email) {
		return entitlement.ErrEmailTaken
	}
	s.accounts[acc.ID] = clone(acc)
	return nil
}

func (s *Store) Get(_ context.Context, id string) (*entitlement.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, entitlement.ErrAccountNotFound
	}
	return clone(a), nil
}

func (s *Store) find(match func(*entitlement.Account) bool) (*entitlement.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.accounts {
		if match(a) {
			return clone(a), nil
		}
	}
	return nil, entitlement.ErrAccountNotFound
}

func (s *Store) FindByEmail(_ context.Context, email string) (*entitlement.Account, error) {
	return s.find(func(a *entitlement.Account) bool { return strings.EqualFold(a.Email, email) })
}

func (s *Store) FindByStripeCustomer(_ context.Context, customerID string) (*entitlement.Account, error) {
	if customerID == "" {
		return nil, entitlement.ErrAccountNotFound
	}
	return s.find(func(a *entitlement.Account) bool { return a.StripeCustomerID == customerID })
}

func (s *Store) FindByProvider(_ context.Context, ref entitlement.ProviderRef) (*entitlement.Account, error) {
	if ref.IsZero() || ref.ID == "" {
		return nil, entitlement.ErrAccountNotFound
	}
	return s.find(func(a *entitlement.Account) bool { return a.Provider == ref })
}

func (s *Store) SetStripeCustomer(_ context.Context, id, customerID string) error {
	return s.mutate(id, func(a *entitlement.Account) { a.StripeCustomerID = customerID })
}

func (s *Store) SetPaymentFailed(_ context.Context, id string, failed bool) error {
	return s.mutate(id, func(a *entitlement.Account) { a.LastPaymentFailed = failed })
}

func (s *Store) mutate(id string, fn func(*entitlement.Account)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return entitlement.ErrAccountNotFound
	}
	fn(a)
	return nil
}

func (s *Store) ApplyUpdate(_ context.Context, id string, u entitlement.Update) (*entitlement.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, entitlement.ErrAccountNotFound
	}
	if err := u.Admits(a); err != nil {
		return nil, err
	}
	u.Apply(a)
	return clone(a), nil
}

func (s *Store) ListByState(_ context.Context, st entitlement.State) ([]*entitlement.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*entitlement.Account
	for _, a := range s.accounts {
		if a.IsMainUser && a.State() == st {
			out = append(out, clone(a))
		}
	}
	sortAccounts(out)
	return out, nil
}

func (s *Store) CreateSecondary(_ context.Context, acc *entitlement.Account, max int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[acc.MainUserID]; !ok {
		return entitlement.ErrAccountNotFound
	}
	if s.emailTaken(acc.Email) {
		return entitlement.ErrEmailTaken
	}
	n := 0
	for _, a := range s.accounts {
		if !a.IsMainUser && a.MainUserID == acc.MainUserID {
			n++
		}
	}
	if n >= max {
		return entitlement.ErrSecondaryLimit
	}
	s.accounts[acc.ID] = clone(acc)
	return nil
}

func (s *Store) ListSecondaries(_ context.Context, mainID string) ([]*entitlement.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*entitlement.Account
	for _, a := range s.accounts {
		if !a.IsMainUser && a.MainUserID == mainID {
			out = append(out, clone(a))
		}
	}
	sortAccounts(out)
	return out, nil
}

func (s *Store) DeleteSecondary(_ context.Context, mainID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok || a.IsMainUser || a.MainUserID != mainID {
		return entitlement.ErrAccountNotFound
	}
	delete(s.accounts, id)
	return nil
}

func (s *Store) AppendTransaction(_ context.Context, tx *entitlement.Transaction) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := tx.Key()
	if _, ok := s.txKeys[key]; ok {
		return false, nil
	}
	s.txKeys[key] = struct{}{}
	c := *tx
	s.txs = append(s.txs, &c)
	return true, nil
}

func (s *Store) ListTransactions(_ context.Context, userID string) ([]*entitlement.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*entitlement.Transaction
	for _, tx := range slices.Backward(s.txs) {
		if tx.UserID == userID {
			c := *tx
			out = append(out, &c)
		}
	}
	return out, nil
}

func sortAccounts(accs []*entitlement.Account) {
	sort.Slice(accs, func(i, j int) bool {
		if accs[i].CreatedAt.Equal(accs[j].CreatedAt) {
			return accs[i].ID < accs[j].ID
		}
		return accs[i].CreatedAt.Before(accs[j].CreatedAt)
	})
}
