// Package inventory manages the freezer grids of a family and the tubes
// stored in them.
//
// Every grid and tube is owned by the account that created it (UserID) and
// belongs to the family of that account's main user (FamilyID). Reads are
// scoped to the family so a secondary user sees everything the lab stores,
// including rows created by secondary users that were later deleted.
//
// Quotas come from the main account's plan limits and count the whole family:
//
//	svc := inventory.NewService(store, auditor, inventory.WithLogger(log))
//	grid, err := svc.CreateGrid(ctx, actor, inventory.GridParams{Name: "Freezer A", Rows: 8, Columns: 12})
//	if errors.Is(err, apperr.ErrLimitReached) {
//		// upgrade required
//	}
//
// Position uniqueness within a grid is enforced by the store, so two
// concurrent inserts into the same cell produce exactly one tube and one
// ErrPositionTaken.
package inventory
