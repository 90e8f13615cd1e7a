package audit

import (
	"fmt"
	"time"
)

// Action is a domain verb recorded in the audit trail.
type Action string

const (
	ActionCreateGrid Action = "create_grid"
	ActionDeleteGrid Action = "delete_grid"
	ActionEmptyGrid  Action = "empty_grid"
	ActionCreateTube Action = "create_tube"
	ActionDeleteTube Action = "delete_tube"
	ActionCreateUser Action = "create_user"
	ActionDeleteUser Action = "delete_user"
)

var actions = map[Action]struct{}{
	ActionCreateGrid: {},
	ActionDeleteGrid: {},
	ActionEmptyGrid:  {},
	ActionCreateTube: {},
	ActionDeleteTube: {},
	ActionCreateUser: {},
	ActionDeleteUser: {},
}

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	_, ok := actions[a]
	return ok
}

// Entity types.
const (
	EntityGrid = "grid"
	EntityTube = "tube"
	EntityUser = "user"
)

// ActiveUser is the user who performed an action.
type ActiveUser struct {
	ID         string `json:"id" bson:"id"`
	Name       string `json:"name" bson:"name"`
	Email      string `json:"email" bson:"email"`
	IsMainUser bool   `json:"isMainUser" bson:"isMainUser"`
}

// Details is the structured payload of a record.
type Details struct {
	ActiveUser ActiveUser     `json:"activeUser" bson:"activeUser"`
	Fields     map[string]any `json:"fields,omitempty" bson:"fields,omitempty"`
}

// Record is a single audit log entry.
type Record struct {
	ID         string    `json:"id" bson:"_id"`
	Action     Action    `json:"action" bson:"action"`
	EntityType string    `json:"entityType" bson:"entityType"`
	EntityID   string    `json:"entityId" bson:"entityId"`
	UserID     string    `json:"userId" bson:"userId"`
	Details    Details   `json:"details" bson:"details"`
	RequestID  string    `json:"requestId,omitempty" bson:"requestId,omitempty"`
	IP         string    `json:"ip,omitempty" bson:"ip,omitempty"`
	CreatedAt  time.Time `json:"createdAt" bson:"createdAt"`
}

// Validate checks that the record has every required field.
func (r *Record) Validate() error {
	switch {
	case !r.Action.Valid():
		return fmt.Errorf("%w: unknown action %q", ErrRecordValidation, r.Action)
	case r.EntityType == "" || r.EntityID == "":
		return fmt.Errorf("%w: entity is required", ErrRecordValidation)
	case r.UserID == "":
		return fmt.Errorf("%w: owner user id is required", ErrRecordValidation)
	case r.Details.ActiveUser.ID == "":
		return fmt.Errorf("%w: active user is required", ErrRecordValidation)
	}
	return nil
}

// RecordOption applies configuration to a Record during creation.
type RecordOption func(*Record)

// WithEntity sets the entity type and id.
func WithEntity(entityType, id string) RecordOption {
	return func(r *Record) {
		r.EntityType = entityType
		r.EntityID = id
	}
}

// WithOwner sets the main account the record is filed under.
func WithOwner(mainUserID string) RecordOption {
	return func(r *Record) {
		r.UserID = mainUserID
	}
}

// WithActiveUser sets the user who performed the action.
func WithActiveUser(u ActiveUser) RecordOption {
	return func(r *Record) {
		r.Details.ActiveUser = u
	}
}

// WithField adds a free-form detail field.
func WithField(key string, value any) RecordOption {
	return func(r *Record) {
		if r.Details.Fields == nil {
			r.Details.Fields = make(map[string]any)
		}
		r.Details.Fields[key] = value
	}
}

// Criteria filters records when reading.
type Criteria struct {
	UserID     string
	Action     Action
	EntityType string
	EntityID   string
	ActiveUser string
	Since      time.Time
	Limit      int
	Offset     int
}

// Matches reports whether r satisfies c. Used by in-memory storage.
func (c Criteria) Matches(r Record) bool {
	switch {
	case c.UserID != "" && r.UserID != c.UserID:
		return false
	case c.Action != "" && r.Action != c.Action:
		return false
	case c.EntityType != "" && r.EntityType != c.EntityType:
		return false
	case c.EntityID != "" && r.EntityID != c.EntityID:
		return false
	case c.ActiveUser != "" && r.Details.ActiveUser.ID != c.ActiveUser:
		return false
	case !c.Since.IsZero() && r.CreatedAt.Before(c.Since):
		return false
	}
	return true
}
