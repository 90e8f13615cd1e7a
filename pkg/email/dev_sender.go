package email

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
)

// DevSender writes each message as an .eml file that any mail client opens.
// Files land in dir/<recipient>/ so one user's notices sit together.
type DevSender struct {
	dir  string
	from string
	now  func() time.Time
	mu   sync.Mutex
}

// NewDevSender creates a sender writing into dir. Directories are created on
// first send.
func NewDevSender(dir string) *DevSender {
	return &DevSender{dir: dir, from: "noreply@labgrid.local", now: time.Now}
}

func (d *DevSender) SendEmail(_ context.Context, params SendEmailParams) error {
	if err := params.Validate(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	dir := filepath.Join(d.dir, safeName(params.SendTo))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrFailedToSendEmail, err)
	}

	now := d.now().UTC()
	label := params.Tag
	if label == "" {
		label = params.Subject
	}
	name := fmt.Sprintf("%s_%s.eml", now.Format("20060102T150405.000000"), safeName(label))

	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", d.from)
	fmt.Fprintf(&b, "To: %s\r\n", params.SendTo)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", params.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", now.Format(time.RFC1123Z))
	if params.Tag != "" {
		fmt.Fprintf(&b, "X-Tag: %s\r\n", params.Tag)
	}
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=utf-8\r\n\r\n")
	b.WriteString(params.BodyHTML)

	if err := os.WriteFile(filepath.Join(dir, name), b.Bytes(), 0o644); err != nil {
		return fmt.Errorf("%w: %v", ErrFailedToSendEmail, err)
	}
	return nil
}

var unsafeChars = regexp.MustCompile(`[^a-z0-9@._-]+`)

func safeName(s string) string {
	s = unsafeChars.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "_")
	if len(s) > 80 {
		s = s[:80]
	}
	if s == "" {
		return "message"
	}
	return s
}
