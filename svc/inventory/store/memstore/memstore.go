// Package memstore is an in-process inventory.Store for tests and local development.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/dmitrymomot/labgrid/svc/inventory"
)

// Store keeps grids and tubes in maps guarded by a mutex.
// Returned values are copies.
type Store struct {
	mu    sync.RWMutex
	grids map[string]*inventory.Grid
	tubes map[string]*inventory.Tube
}

var _ inventory.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		grids: make(map[string]*inventory.Grid),
		tubes: make(map[string]*inventory.Tube),
	}
}

func cloneTube(t *inventory.Tube) *inventory.Tube {
	c := *t
	c.Fields = make(map[string]string, len(t.Fields))
	for k, v := range t.Fields {
		c.Fields[k] = v
	}
	return &c
}

func (s *Store) CreateGrid(_ context.Context, g *inventory.Grid) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *g
	s.grids[g.ID] = &c
	return nil
}

func (s *Store) GetGrid(_ context.Context, scope inventory.Scope, id string) (*inventory.Grid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.grids[id]
	if !ok || !scope.Visible(g.UserID, g.FamilyID) {
		return nil, inventory.ErrGridNotFound
	}
	c := *g
	return &c, nil
}

func (s *Store) ListGrids(_ context.Context, scope inventory.Scope) ([]*inventory.Grid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*inventory.Grid
	for _, g := range s.grids {
		if scope.Visible(g.UserID, g.FamilyID) {
			c := *g
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) DeleteGrid(_ context.Context, scope inventory.Scope, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.grids[id]
	if !ok || !scope.Visible(g.UserID, g.FamilyID) {
		return inventory.ErrGridNotFound
	}
	delete(s.grids, id)
	for tid, t := range s.tubes {
		if t.GridID == id {
			delete(s.tubes, tid)
		}
	}
	return nil
}

func (s *Store) CountGrids(_ context.Context, scope inventory.Scope) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, g := range s.grids {
		if scope.Visible(g.UserID, g.FamilyID) {
			n++
		}
	}
	return n, nil
}

func (s *Store) CreateTube(_ context.Context, t *inventory.Tube) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.grids[t.GridID]; !ok {
		return inventory.ErrGridNotFound
	}
	for _, existing := range s.tubes {
		if existing.GridID == t.GridID && existing.Position == t.Position {
			return inventory.ErrPositionTaken
		}
	}
	s.tubes[t.ID] = cloneTube(t)
	return nil
}

func (s *Store) GetTube(_ context.Context, scope inventory.Scope, id string) (*inventory.Tube, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tubes[id]
	if !ok || !scope.Visible(t.UserID, t.FamilyID) {
		return nil, inventory.ErrTubeNotFound
	}
	return cloneTube(t), nil
}

func (s *Store) ListTubes(_ context.Context, scope inventory.Scope, gridID string) ([]*inventory.Tube, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*inventory.Tube
	for _, t := range s.tubes {
		if t.GridID == gridID && scope.Visible(t.UserID, t.FamilyID) {
			out = append(out, cloneTube(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (s *Store) DeleteTube(_ context.Context, scope inventory.Scope, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tubes[id]
	if !ok || !scope.Visible(t.UserID, t.FamilyID) {
		return inventory.ErrTubeNotFound
	}
	delete(s.tubes, id)
	return nil
}

func (s *Store) EmptyGrid(_ context.Context, gridID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, t := range s.tubes {
		if t.GridID == gridID {
			delete(s.tubes, id)
			n++
		}
	}
	return n, nil
}

func (s *Store) CountTubes(_ context.Context, scope inventory.Scope) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, t := range s.tubes {
		if scope.Visible(t.UserID, t.FamilyID) {
			n++
		}
	}
	return n, nil
}
