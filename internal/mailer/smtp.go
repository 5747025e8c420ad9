package mailer

import (
	"context"
	"fmt"
	"net/smtp"
)

// SMTPGateway dispatches mail through a standard SMTP relay using PLAIN auth.
type SMTPGateway struct {
	Addr     string
	From     string
	Identity string
	Username string
	Password string
	Host     string

	// sendMail is a seam for tests; defaults to smtp.SendMail.
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPGateway constructs a gateway that authenticates with PLAIN auth against host:port.
func NewSMTPGateway(host string, port int, username, password, from string) *SMTPGateway {
	return &SMTPGateway{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		From:     from,
		Username: username,
		Password: password,
		Host:     host,
		sendMail: smtp.SendMail,
	}
}

// SendMail sends a single plain-text email to recipient. Any failure signals the caller to retry.
func (g *SMTPGateway) SendMail(_ context.Context, recipient, subject, body string) error {
	auth := smtp.PlainAuth(g.Identity, g.Username, g.Password, g.Host)

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s", g.From, recipient, subject, body)

	return g.sendMail(g.Addr, auth, g.From, []string{recipient}, []byte(msg))
}
