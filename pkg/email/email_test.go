package email_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/labgrid/pkg/email"
)

var params = email.SendEmailParams{
	SendTo:   "owner@lab.test",
	Subject:  "Your trial has ended",
	BodyHTML: "<p>Hello</p>",
	Tag:      "trial-expired",
}

func TestSendEmailParams_Validate(t *testing.T) {
	t.Parallel()

	require.NoError(t, params.Validate())

	for name, p := range map[string]email.SendEmailParams{
		"bad recipient": {SendTo: "not-an-email", Subject: "s", BodyHTML: "b"},
		"display name":  {SendTo: "Owner <owner@lab.test>", Subject: "s", BodyHTML: "b"},
		"no subject":    {SendTo: "owner@lab.test", Subject: " ", BodyHTML: "b"},
		"no body":       {SendTo: "owner@lab.test", Subject: "s"},
	} {
		assert.ErrorIs(t, p.Validate(), email.ErrInvalidParams, name)
	}
}

func TestNewPostmarkClient_InvalidConfig(t *testing.T) {
	t.Parallel()

	for name, cfg := range map[string]email.Config{
		"no token":    {SenderEmail: "noreply@lab.test", SupportEmail: "support@lab.test"},
		"bad sender":  {PostmarkServerToken: "tok", SenderEmail: "nope", SupportEmail: "support@lab.test"},
		"bad support": {PostmarkServerToken: "tok", SenderEmail: "noreply@lab.test", SupportEmail: ""},
	} {
		client, err := email.NewPostmarkClient(cfg)
		assert.ErrorIs(t, err, email.ErrInvalidConfig, name)
		assert.Nil(t, client, name)
	}
}

func newPostmark(t *testing.T, h http.HandlerFunc) email.EmailSender {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	client, err := email.NewPostmarkClient(email.Config{
		PostmarkServerToken: "server-token",
		SenderEmail:         "noreply@lab.test",
		SupportEmail:        "support@lab.test",
	}, email.WithBaseURL(srv.URL))
	require.NoError(t, err)
	return client
}

func TestPostmarkClient_SendEmail(t *testing.T) {
	t.Parallel()

	t.Run("sends", func(t *testing.T) {
		t.Parallel()
		var got map[string]any
		client := newPostmark(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/email", r.URL.Path)
			assert.Equal(t, "server-token", r.Header.Get("X-Postmark-Server-Token"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			_, _ = w.Write([]byte(`{"To":"owner@lab.test","MessageID":"m1","ErrorCode":0,"Message":"OK"}`))
		})

		require.NoError(t, client.SendEmail(context.Background(), params))
		assert.Equal(t, "noreply@lab.test", got["From"])
		assert.Equal(t, "support@lab.test", got["ReplyTo"])
		assert.Equal(t, "trial-expired", got["Tag"])
	})

	t.Run("provider error code", func(t *testing.T) {
		t.Parallel()
		client := newPostmark(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"ErrorCode":406,"Message":"Inactive recipient"}`))
		})

		err := client.SendEmail(context.Background(), params)
		assert.ErrorIs(t, err, email.ErrFailedToSendEmail)
		assert.ErrorContains(t, err, "Inactive recipient")
	})

	t.Run("invalid params never reach the provider", func(t *testing.T) {
		t.Parallel()
		client := newPostmark(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("unexpected request")
		})
		assert.ErrorIs(t, client.SendEmail(context.Background(), email.SendEmailParams{}), email.ErrInvalidParams)
	})
}

func TestDevSender(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "emails")
	sender := email.NewDevSender(dir)
	require.NoError(t, sender.SendEmail(context.Background(), params))

	inbox := filepath.Join(dir, strings.ToLower(params.SendTo))
	entries, err := os.ReadDir(inbox)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasSuffix(entries[0].Name(), ".eml"))
	assert.Contains(t, entries[0].Name(), "trial-expired")

	raw, err := os.ReadFile(filepath.Join(inbox, entries[0].Name()))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "To: "+params.SendTo+"\r\n")
	assert.Contains(t, string(raw), "Content-Type: text/html; charset=utf-8")
	assert.True(t, strings.HasSuffix(string(raw), params.BodyHTML))

	assert.ErrorIs(t, sender.SendEmail(context.Background(), email.SendEmailParams{}), email.ErrInvalidParams)
}

func TestFromConfig(t *testing.T) {
	t.Parallel()

	sender, err := email.FromConfig(email.Config{DevDir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &email.DevSender{}, sender)
}
