package email

import (
	"context"
	"fmt"
	"net/smtp"
)

// Sender delivers email via SMTP. It implements
// notification.EmailProvider.
type Sender struct {
	host string
	port string
	from string
}

// NewSender creates a new SMTP sender
func NewSender(host, port, from string) *Sender {
	return &Sender{
		host: host,
		port: port,
		from: from,
	}
}

// Send delivers one message. The SMTP call itself cannot be interrupted,
// so it runs in a goroutine and the method returns as soon as either the
// send finishes or ctx expires.
func (s *Sender) Send(ctx context.Context, to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		s.from, to, subject, body)
	addr := fmt.Sprintf("%s:%s", s.host, s.port)

	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(addr, nil, s.from, []string{to}, []byte(msg))
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
