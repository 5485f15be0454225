package alerts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSMTPNotifier(t *testing.T) {
	_, err := NewSMTPNotifier(SMTPConfig{})
	assert.ErrorIs(t, err, ErrNotifierUnavailable)

	n, err := NewSMTPNotifier(SMTPConfig{Host: "smtp.example.com", From: "alerts@example.com"})
	require.NoError(t, err)
	assert.Equal(t, 587, n.cfg.Port)
}

func TestSMTPNotifier_BuildMessage(t *testing.T) {
	n, err := NewSMTPNotifier(SMTPConfig{Host: "smtp.example.com", From: "alerts@example.com"})
	require.NoError(t, err)

	msg, err := n.buildMessage([]string{"ops@example.com", "oncall@example.com"}, "Job Portal - Test Alert", "<p>hi</p>")
	require.NoError(t, err)
	rcpts, err := msg.GetRecipients()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"ops@example.com", "oncall@example.com"}, rcpts)

	_, err = n.buildMessage(nil, "s", "b")
	assert.Error(t, err)

	_, err = n.buildMessage([]string{"not an address"}, "s", "b")
	assert.Error(t, err)
}
