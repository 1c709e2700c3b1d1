package mail

import (
	"context"
	"errors"
	"net/smtp"
	"testing"

	"github.com/jordan-wright/email"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMail struct {
	email *email.Email
	addr  string
	auth  smtp.Auth
}

func fakeSender(settings Settings, errs ...error) (*Sender, *[]sentMail) {
	var sent []sentMail
	s := NewSender(settings, nil)
	s.send = func(e *email.Email, addr string, auth smtp.Auth) error {
		sent = append(sent, sentMail{email: e, addr: addr, auth: auth})
		if len(errs) > 0 {
			err := errs[0]
			errs = errs[1:]
			return err
		}
		return nil
	}
	return s, &sent
}

// TestMessage verifies the envelope and the HTML body
func TestMessage(t *testing.T) {
	s := NewSender(Settings{From: "bot@example.com", To: []string{"scout@example.com"}}, nil)

	e := s.Message("Defender rumours (3)", "<table></table>")

	assert.Equal(t, "bot@example.com", e.From)
	assert.Equal(t, []string{"scout@example.com"}, e.To)
	assert.Equal(t, "Defender rumours (3)", e.Subject)
	assert.Equal(t, "<table></table>", string(e.HTML))
	assert.NotEmpty(t, e.Text)

	raw, err := e.Bytes()
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Subject: Defender rumours (3)")
	assert.Contains(t, string(raw), "text/html")
}

// TestSend_WithAuth verifies credentials and the server address
func TestSend_WithAuth(t *testing.T) {
	s, sent := fakeSender(Settings{
		Host: "smtp.example.com", Port: 587, User: "u", Password: "p",
		From: "bot@example.com", To: []string{"a@example.com", "b@example.com"},
	})

	require.NoError(t, s.Send(context.Background(), "subject", "<p>x</p>"))

	require.Len(t, *sent, 1)
	assert.Equal(t, "smtp.example.com:587", (*sent)[0].addr)
	assert.NotNil(t, (*sent)[0].auth)
	assert.Len(t, (*sent)[0].email.To, 2)
}

// TestSend_WithoutUser verifies no credentials are sent without a user
func TestSend_WithoutUser(t *testing.T) {
	s, sent := fakeSender(Settings{Host: "localhost", Port: 25, From: "a@x", To: []string{"b@x"}})

	require.NoError(t, s.Send(context.Background(), "subject", ""))

	require.Len(t, *sent, 1)
	assert.Nil(t, (*sent)[0].auth)
}

// TestSend_FallsBackWithoutAuth verifies the retry for servers lacking AUTH
func TestSend_FallsBackWithoutAuth(t *testing.T) {
	s, sent := fakeSender(Settings{Host: "h", Port: 25, User: "u", From: "a@x", To: []string{"b@x"}},
		errors.New("smtp: server doesn't support AUTH"))

	require.NoError(t, s.Send(context.Background(), "subject", ""))

	require.Len(t, *sent, 2)
	assert.NotNil(t, (*sent)[0].auth)
	assert.Nil(t, (*sent)[1].auth)
}

// TestSend_Failure verifies delivery errors are wrapped
func TestSend_Failure(t *testing.T) {
	s, _ := fakeSender(Settings{Host: "h", Port: 25, From: "a@x", To: []string{"b@x"}},
		errors.New("connection refused"))

	err := s.Send(context.Background(), "subject", "")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to send mail via h:25")
}

// TestSend_NoRecipients verifies an empty recipient list is rejected
func TestSend_NoRecipients(t *testing.T) {
	s, sent := fakeSender(Settings{Host: "h", Port: 25})

	assert.Error(t, s.Send(context.Background(), "subject", ""))
	assert.Empty(t, *sent)
}
