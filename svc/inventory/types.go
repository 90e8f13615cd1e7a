package inventory

import (
	"strings"
	"time"

	"github.com/dmitrymomot/labgrid/pkg/apperr"
)

// Grid is a freezer box of Rows x Columns cells.
type Grid struct {
	ID        string    `json:"id" bson:"_id"`
	UserID    string    `json:"userId" bson:"userId"`
	FamilyID  string    `json:"familyId" bson:"familyId"`
	Name      string    `json:"name" bson:"name"`
	Rows      int       `json:"rows" bson:"rows"`
	Columns   int       `json:"columns" bson:"columns"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

// Tube is a sample stored at one Position of a Grid.
type Tube struct {
	ID        string            `json:"id" bson:"_id"`
	GridID    string            `json:"gridId" bson:"gridId"`
	UserID    string            `json:"userId" bson:"userId"`
	FamilyID  string            `json:"familyId" bson:"familyId"`
	Position  string            `json:"position" bson:"position"`
	Fields    map[string]string `json:"fields" bson:"fields"`
	CreatedAt time.Time         `json:"createdAt" bson:"createdAt"`
}

// GridParams are the user-supplied fields of a new grid.
type GridParams struct {
	Name    string `json:"name"`
	Rows    int    `json:"rows"`
	Columns int    `json:"columns"`
}

const maxColumns = 99

func (p *GridParams) Validate() error {
	p.Name = strings.TrimSpace(p.Name)
	switch {
	case p.Name == "":
		return apperr.Invalidf("grid name is required")
	case p.Rows < 1 || p.Rows > MaxRows:
		return apperr.Invalidf("rows must be between 1 and %d", MaxRows)
	case p.Columns < 1 || p.Columns > maxColumns:
		return apperr.Invalidf("columns must be between 1 and %d", maxColumns)
	}
	return nil
}

// TubeParams are the user-supplied fields of a new tube.
type TubeParams struct {
	Position string            `json:"position"`
	Fields   map[string]string `json:"fields"`
}

// Scope selects the rows visible to a family.
// A row matches when its FamilyID is the family or its owner is a member.
type Scope struct {
	FamilyID  string
	MemberIDs []string
}

// Visible reports whether a row owned by userID in familyID is in scope.
func (s Scope) Visible(userID, familyID string) bool {
	if familyID == s.FamilyID {
		return true
	}
	for _, id := range s.MemberIDs {
		if id == userID {
			return true
		}
	}
	return false
}
