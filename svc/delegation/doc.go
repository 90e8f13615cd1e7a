// Package delegation resolves the acting user of a request and keeps the audit
// trail of every mutation performed on behalf of a family of accounts.
//
// A family is one main account plus up to entitlement.MaxSecondaryUsers
// secondary users. The session belongs to one member of the family; the
// X-Active-User-Id header may name another member to act as. Resolution fails
// closed: an unknown or foreign id is ErrActiveUserNotFound and never falls
// back to the session user, since that would misattribute the audit trail.
//
// Audit records are filed under the main account id; Details.ActiveUser holds
// the acting user.
//
// Deleting a secondary user keeps its grids and tubes in place. They stay
// owned by the deleted user id and remain visible to the family.
package delegation
