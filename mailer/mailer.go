// Package mailer delivers rendered digests over SMTP.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/wneessen/go-mail"
)

var ErrNoRecipients = errors.New("no recipients")

// Message is a single email sent to every recipient
type Message struct {
	Subject    string
	HTMLBody   string
	TextBody   string
	From       string
	Recipients []string
}

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	// TLS is one of "mandatory", "opportunistic", "ssl" or "none"
	TLS     string
	Timeout time.Duration
}

// SMTPMailer sends messages through an SMTP server
type SMTPMailer struct {
	config Config
}

func NewSMTPMailer(config Config) *SMTPMailer {
	return &SMTPMailer{config: config}
}

func (m *SMTPMailer) Send(ctx context.Context, message Message) error {
	msg, err := newMsg(message)
	if err != nil {
		return err
	}

	client, err := mail.NewClient(m.config.Host, m.clientOptions()...)
	if err != nil {
		return fmt.Errorf("failed to create smtp client: %w", err)
	}

	log.WithFields(log.Fields{
		"host":       m.config.Host,
		"port":       m.config.Port,
		"recipients": len(message.Recipients),
	}).Debug("Sending email")

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func (m *SMTPMailer) clientOptions() []mail.Option {
	opts := []mail.Option{}
	if m.config.Port != 0 {
		opts = append(opts, mail.WithPort(m.config.Port))
	}
	if m.config.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(m.config.Timeout))
	}
	if m.config.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.config.Username),
			mail.WithPassword(m.config.Password),
		)
	}

	switch m.config.TLS {
	case "none":
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	case "opportunistic":
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	case "ssl":
		opts = append(opts, mail.WithSSL())
	default:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}
	return opts
}

func newMsg(message Message) (*mail.Msg, error) {
	if len(message.Recipients) == 0 {
		return nil, ErrNoRecipients
	}

	msg := mail.NewMsg()
	if err := msg.From(message.From); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", message.From, err)
	}
	if err := msg.To(message.Recipients...); err != nil {
		return nil, fmt.Errorf("invalid recipients: %w", err)
	}
	msg.Subject(message.Subject)
	msg.SetDate()

	msg.SetBodyString(mail.TypeTextPlain, message.TextBody)
	if message.HTMLBody != "" {
		msg.AddAlternativeString(mail.TypeTextHTML, message.HTMLBody)
	}
	return msg, nil
}
