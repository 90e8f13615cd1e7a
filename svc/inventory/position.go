package inventory

import (
	"strconv"
	"strings"

	"github.com/dmitrymomot/labgrid/pkg/apperr"
)

// MaxRows is the number of row letters, A to Z.
const MaxRows = 26

// Position is a cell of a grid: a row letter followed by a 1-based column.
type Position struct {
	Row    int // 0 is A
	Column int
}

func (p Position) String() string {
	return string(rune('A'+p.Row)) + strconv.Itoa(p.Column)
}

// ParsePosition parses a cell such as "B7" against a grid of rows x columns.
// Lowercase row letters are accepted.
func ParsePosition(s string, rows, columns int) (Position, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) < 2 || s[0] < 'A' || s[0] > 'Z' {
		return Position{}, apperr.Invalidf("invalid position %q", s)
	}
	digits := s[1:]
	col, err := strconv.Atoi(digits)
	if err != nil || digits[0] < '1' || digits[0] > '9' {
		return Position{}, apperr.Invalidf("invalid position %q", s)
	}
	row := int(s[0] - 'A')
	if row >= rows || col > columns {
		return Position{}, apperr.Invalidf("position %q is outside the %dx%d grid", s, rows, columns)
	}
	return Position{Row: row, Column: col}, nil
}
