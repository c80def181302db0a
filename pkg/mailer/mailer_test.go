package mailer

import (
	"errors"
	"net/smtp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{From: "a@b.c", Username: "u", Password: "p"})
	assert.Error(t, err)
	_, err = New(Config{Host: "smtp.example.com", Username: "u", Password: "p"})
	assert.Error(t, err)
	_, err = New(Config{Host: "smtp.example.com", From: "a@b.c"})
	assert.Error(t, err)

	m, err := New(Config{Host: "smtp.example.com", From: "a@b.c", Username: "u", Password: "p"})
	require.NoError(t, err)
	assert.Equal(t, "2525", m.cfg.Port)
}

func TestSend(t *testing.T) {
	m, err := New(Config{Host: "smtp.example.com", Port: "587", From: "noreply@example.com", Username: "u", Password: "p"})
	require.NoError(t, err)

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	m.sendMail = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	require.NoError(t, m.Send("ana@example.com", "New trip message", "<p>Hello</p>"))
	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, "noreply@example.com", gotFrom)
	assert.Equal(t, []string{"ana@example.com"}, gotTo)
	assert.Contains(t, string(gotMsg), "Content-Type: text/html; charset=UTF-8")
	assert.Contains(t, string(gotMsg), "Subject: New trip message\r\n")
}

func TestSend_Errors(t *testing.T) {
	m, err := New(Config{Host: "smtp.example.com", From: "noreply@example.com", Username: "u", Password: "p"})
	require.NoError(t, err)
	m.sendMail = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("535 auth failed") }

	assert.Error(t, m.Send("", "s", "b"))
	assert.Error(t, m.Send("ana@example.com", "line\r\nBcc: x@y.z", "b"))

	err = m.Send("ana@example.com", "s", "plain body")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "535 auth failed")
}

func TestBuildMessage_PlainText(t *testing.T) {
	msg := string(BuildMessage("a@b.c", "d@e.f", "Hi", "just text"))
	assert.Contains(t, msg, "Content-Type: text/plain; charset=UTF-8")
	assert.Contains(t, msg, "To: d@e.f\r\nFrom: a@b.c\r\n")
}
