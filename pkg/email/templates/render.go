// Package templates renders templ components into email bodies.
package templates

import (
	"context"
	"strings"

	"github.com/a-h/templ"
)

// Render renders a templ component into a string suitable for
// email.SendEmailParams.BodyHTML.
//
// Parameters:
//   - ctx: passed to the component; a cancelled context aborts rendering
//   - c: the component to render
//
// Returns:
//   - string: the rendered HTML
//   - error: the first error returned by the component
func Render(ctx context.Context, c templ.Component) (string, error) {
	var sb strings.Builder
	if err := c.Render(ctx, &sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}
