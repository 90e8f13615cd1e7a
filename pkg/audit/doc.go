// Package audit records who did what to lab data.
//
// Every mutating action on grids, tubes or secondary users appends one Record.
// Records are filed under the main account of the family (Record.UserID) so an
// owner can query the whole family at once, while Details.ActiveUser names the
// user who actually performed the action.
//
// Basic usage:
//
//	log := audit.NewLogger(audit.NewMemoryStorage(),
//		audit.WithRequestIDExtractor(requestid.Extract),
//		audit.WithIPExtractor(clientip.Extract),
//	)
//
//	err := log.Log(ctx, audit.ActionCreateGrid,
//		audit.WithEntity(audit.EntityGrid, grid.ID),
//		audit.WithOwner(mainUserID),
//		audit.WithActiveUser(audit.ActiveUser{ID: actor.ID, Name: actor.Name}),
//		audit.WithField("name", grid.Name),
//	)
//
// Storage backends: MemoryStorage for tests and single-node development,
// PGStorage and MongoStorage for production, and OpenSearchMirror which
// copies records into a search index on top of any of them.
//
// Records are append-only. Storage implementations never update or delete them.
package audit
