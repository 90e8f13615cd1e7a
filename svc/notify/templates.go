package notify

import (
	"context"
	"io"
	"strconv"

	"github.com/a-h/templ"
)

// htmlWriter writes markup and escaped text, keeping the first error.
type htmlWriter struct {
	w   io.Writer
	err error
}

func (h *htmlWriter) raw(s string) *htmlWriter {
	if h.err == nil {
		_, h.err = io.WriteString(h.w, s)
	}
	return h
}

func (h *htmlWriter) text(s string) *htmlWriter {
	return h.raw(templ.EscapeString(s))
}

// link writes an anchor whose href passes templ's URL sanitizer.
func (h *htmlWriter) link(href, label string) *htmlWriter {
	return h.raw(`<a href="`).text(string(templ.URL(href))).raw(`">`).text(label).raw("</a>")
}

// layout wraps a message body in the shared email frame.
func layout(body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		if h.raw(`<div style="font-family:sans-serif;line-height:1.5">`).err != nil {
			return h.err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		return h.raw(`<p style="color:#888">LabGrid</p></div>`).err
	})
}

func trialExpiredBody(d messageData) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.raw("<p>Hi ").text(d.Name).raw(",</p>\n")
		h.raw("<p>Your ").text(strconv.Itoa(d.TrialDays)).raw("-day Premium trial ended on ").text(d.Date).
			raw(". Your lab is now on the Free plan with up to ").text(strconv.Itoa(d.Limits.MaxGrids)).
			raw(" grids and ").text(strconv.Itoa(d.Limits.MaxTubes)).raw(" tubes.</p>\n")
		h.raw("<p>Everything you stored is still there. ").link(d.BillingURL, "Choose a plan").
			raw(" to lift the limits again.</p>")
		return h.err
	})
}

func paymentFailedBody(d messageData) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.raw("<p>Hi ").text(d.Name).raw(",</p>\n")
		h.raw("<p>The latest payment for your ").text(string(d.Plan)).
			raw(" plan did not go through. Your plan stays active while the provider retries.</p>\n")
		h.raw("<p>").link(d.BillingURL, "Update your payment method").
			raw(" to avoid losing access to your lab's grids.</p>")
		return h.err
	})
}
