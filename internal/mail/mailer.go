// Package mail sends transactional email over SMTP. Send failures are
// returned to the caller, which records them as status tags; they must
// never abort an order mutation that already succeeded.
package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"

	"github.com/rs/zerolog"
)

// Message is a single outbound email.
type Message struct {
	From    string
	To      string
	Subject string
	HTML    string
}

// Sender defines the interface for dispatching email.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Config holds SMTP connection settings.
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	FromName string
	FromAddr string
}

// smtpSender implements Sender against a plain SMTP submission endpoint,
// choosing TLS (465), STARTTLS (587/25), or cleartext by port.
type smtpSender struct {
	cfg    Config
	logger zerolog.Logger
}

// NewSMTPSender creates a new SMTP-backed sender.
func NewSMTPSender(cfg Config, logger zerolog.Logger) Sender {
	return &smtpSender{
		cfg:    cfg,
		logger: logger.With().Str("component", "smtp-sender").Logger(),
	}
}

// Send submits the message. The context bounds nothing here beyond the
// transport's own dialing timeouts; SMTP has no cancellation hook.
func (s *smtpSender) Send(ctx context.Context, msg Message) error {
	if s.cfg.Host == "" || s.cfg.Port == "" {
		return fmt.Errorf("smtp not configured")
	}

	from := msg.From
	if from == "" {
		from = s.cfg.FromAddr
		if s.cfg.FromName != "" {
			from = fmt.Sprintf("%s <%s>", s.cfg.FromName, s.cfg.FromAddr)
		}
	}

	body := fmt.Sprintf("From: %s\r\n"+
		"To: %s\r\n"+
		"Subject: %s\r\n"+
		"MIME-Version: 1.0\r\n"+
		"Content-Type: text/html; charset=UTF-8\r\n"+
		"\r\n"+
		"%s", from, msg.To, msg.Subject, msg.HTML)

	addr := fmt.Sprintf("%s:%s", s.cfg.Host, s.cfg.Port)

	var auth smtp.Auth
	if s.cfg.Username != "" && s.cfg.Password != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	var err error
	switch s.cfg.Port {
	case "465":
		err = s.sendWithTLS(addr, auth, msg.To, []byte(body))
	case "587", "25":
		err = s.sendWithStartTLS(addr, auth, msg.To, []byte(body))
	default:
		err = smtp.SendMail(addr, auth, s.cfg.FromAddr, []string{msg.To}, []byte(body))
	}

	if err != nil {
		s.logger.Error().
			Err(err).
			Str("to", msg.To).
			Str("subject", msg.Subject).
			Msg("failed to send email")
		return err
	}

	s.logger.Info().
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Msg("email sent")

	return nil
}

// sendWithTLS connects over implicit TLS (port 465).
func (s *smtpSender) sendWithTLS(addr string, auth smtp.Auth, to string, body []byte) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: s.cfg.Host})
	if err != nil {
		return fmt.Errorf("tls dial failed: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		return fmt.Errorf("smtp client failed: %w", err)
	}
	defer client.Close()

	return s.submit(client, auth, to, body)
}

// sendWithStartTLS connects in cleartext and upgrades (ports 587/25).
func (s *smtpSender) sendWithStartTLS(addr string, auth smtp.Auth, to string, body []byte) error {
	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("smtp dial failed: %w", err)
	}
	defer client.Close()

	if err := client.StartTLS(&tls.Config{ServerName: s.cfg.Host}); err != nil {
		return fmt.Errorf("starttls failed: %w", err)
	}

	return s.submit(client, auth, to, body)
}

func (s *smtpSender) submit(client *smtp.Client, auth smtp.Auth, to string, body []byte) error {
	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth failed: %w", err)
		}
	}

	if err := client.Mail(s.cfg.FromAddr); err != nil {
		return fmt.Errorf("mail from failed: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("rcpt to failed: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("data failed: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("write failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close failed: %w", err)
	}

	return client.Quit()
}
