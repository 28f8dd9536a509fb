package notification

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/google/uuid"
)

// SMTPClient sends email through a plain SMTP relay.
type SMTPClient struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string

	// sendMail overrides the wire call in tests; nil means smtp.SendMail.
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func (c *SMTPClient) Send(ctx context.Context, address, subject, content string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if c.Host == "" {
		return "", fmt.Errorf("smtp host not configured")
	}
	from := c.From
	if from == "" {
		from = c.Username
	}
	if from == "" {
		return "", fmt.Errorf("smtp from not configured")
	}

	headers := []string{
		fmt.Sprintf("From: %s", from),
		fmt.Sprintf("To: %s", address),
		fmt.Sprintf("Subject: %s", subject),
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=UTF-8",
	}
	data := strings.Join(headers, "\r\n") + "\r\n\r\n" + content

	var auth smtp.Auth
	if c.Username != "" || c.Password != "" {
		auth = smtp.PlainAuth("", c.Username, c.Password, c.Host)
	}
	addr := fmt.Sprintf("%s:%s", c.Host, c.Port)
	send := c.sendMail
	if send == nil {
		send = smtp.SendMail
	}

	// net/smtp has no context support, so the wire call runs on its own
	// goroutine and the caller's deadline is enforced here. After
	// cancellation the call finishes on its own schedule and its result
	// is discarded.
	done := make(chan error, 1)
	go func() {
		done <- send(addr, auth, from, []string{address}, []byte(data))
	}()
	select {
	case err := <-done:
		if err != nil {
			return "", err
		}
	case <-ctx.Done():
		return "", ctx.Err()
	}
	// SMTP has no provider message id; synthesize one for accounting.
	return uuid.NewString(), nil
}
