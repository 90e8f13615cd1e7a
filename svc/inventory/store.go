package inventory

import "context"

// Store persists grids and tubes.
//
// CreateTube must fail with ErrPositionTaken when the (GridID, Position) pair
// already exists. DeleteGrid removes the grid's tubes as well.
type Store interface {
	CreateGrid(ctx context.Context, g *Grid) error
	GetGrid(ctx context.Context, scope Scope, id string) (*Grid, error)
	ListGrids(ctx context.Context, scope Scope) ([]*Grid, error)
	DeleteGrid(ctx context.Context, scope Scope, id string) error
	CountGrids(ctx context.Context, scope Scope) (int, error)

	CreateTube(ctx context.Context, t *Tube) error
	GetTube(ctx context.Context, scope Scope, id string) (*Tube, error)
	ListTubes(ctx context.Context, scope Scope, gridID string) ([]*Tube, error)
	DeleteTube(ctx context.Context, scope Scope, id string) error
	// EmptyGrid deletes every tube of a grid and returns how many were removed.
	EmptyGrid(ctx context.Context, gridID string) (int, error)
	CountTubes(ctx context.Context, scope Scope) (int, error)
}
