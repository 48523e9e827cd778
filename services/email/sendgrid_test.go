package emailsvc

import (
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core"
)

func TestSendgridService_prepare(t *testing.T) {
	svc := NewSendgridService(core.NewTestConfig(), nil)

	msg := core.EmailMessage{
		To:          []mail.Address{{Name: "Jane", Address: "jane@test.cd"}},
		Cc:          []mail.Address{{Address: "cc@test.cd"}},
		Subject:     "Password Reset",
		TextContent: "hello",
		HTMLContent: "<p>hello</p>",
	}
	m := svc.prepare(msg)

	assert.Equal(t, "noreply@localhost", m.From.Address)
	require.Len(t, m.Personalizations, 1)
	p := m.Personalizations[0]
	assert.Equal(t, "[Academia] Password Reset", p.Subject)
	require.Len(t, p.To, 1)
	assert.Equal(t, "jane@test.cd", p.To[0].Address)
	require.Len(t, p.CC, 1)
	assert.Empty(t, p.BCC)

	require.Len(t, m.Content, 2)
	assert.Equal(t, "text/plain", m.Content[0].Type)
	assert.Equal(t, "text/html", m.Content[1].Type)
}
