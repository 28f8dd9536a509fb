package notification

import (
	"context"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMTPSendBuildsMessage(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	client := &SMTPClient{
		Host: "mail.example.com",
		Port: "587",
		From: "noreply@example.com",
		sendMail: func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
			gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
			return nil
		},
	}

	msgID, err := client.Send(context.Background(), "maria@example.com", "Welcome", "Hi Maria")
	require.NoError(t, err)
	assert.NotEmpty(t, msgID)
	assert.Equal(t, "mail.example.com:587", gotAddr)
	assert.Equal(t, "noreply@example.com", gotFrom)
	assert.Equal(t, []string{"maria@example.com"}, gotTo)
	assert.Contains(t, string(gotMsg), "Subject: Welcome")
	assert.True(t, strings.HasSuffix(string(gotMsg), "Hi Maria"))
}

func TestSMTPSendHonorsContextDeadline(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	client := &SMTPClient{
		Host: "mail.example.com",
		Port: "587",
		From: "noreply@example.com",
		sendMail: func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
			// A relay that accepted the connection and went silent.
			<-release
			return nil
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := client.Send(ctx, "maria@example.com", "Welcome", "Hi Maria")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}
