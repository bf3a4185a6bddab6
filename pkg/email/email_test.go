package email_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/libraryops/pkg/email"
)

func TestSendEmailParams_Validate(t *testing.T) {
	t.Parallel()

	ok := email.SendEmailParams{SendTo: "reader@library.org", Subject: "Due", BodyText: "Return it"}
	require.NoError(t, ok.Validate())

	bad := email.SendEmailParams{SendTo: "nope", Subject: ""}
	err := bad.Validate()
	require.ErrorIs(t, err, email.ErrInvalidParams)
	assert.True(t, email.IsPermanent(err))
	assert.Contains(t, err.Error(), "send_to")
	assert.Contains(t, err.Error(), "subject")
	assert.Contains(t, err.Error(), "body")
}

func TestDevSender_WritesFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := email.NewDevSender(dir)

	id, err := s.SendEmail(context.Background(), email.SendEmailParams{
		SendTo:   "reader@library.org",
		Subject:  "Your reservation is ready",
		BodyText: "Pick it up at the front desk",
		Tag:      "reservation.fulfilled",
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Name(), "reservation.fulfilled")

	raw, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)

	var saved map[string]any
	require.NoError(t, json.Unmarshal(raw, &saved))
	assert.Equal(t, id, saved["id"])
	assert.Equal(t, "reader@library.org", saved["send_to"])
}

func TestNew_SelectsSender(t *testing.T) {
	t.Parallel()

	s, err := email.New(email.Config{DevDir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &email.DevSender{}, s)

	_, err = email.New(email.Config{SMTPHost: "smtp.library.local", SMTPPort: 587, SenderEmail: "bad"})
	assert.ErrorIs(t, err, email.ErrInvalidConfig)

	s, err = email.New(email.Config{SMTPHost: "smtp.library.local", SMTPPort: 587, SenderEmail: "noreply@library.org"})
	require.NoError(t, err)
	assert.NotNil(t, s)

	_, err = email.New(email.Config{PostmarkServerToken: "x", SenderEmail: "noreply@library.org"})
	assert.ErrorIs(t, err, email.ErrInvalidConfig)

	s, err = email.New(email.Config{PostmarkServerToken: "x", PostmarkAccountToken: "y", SenderEmail: "noreply@library.org"})
	require.NoError(t, err)
	assert.NotNil(t, s)
}
