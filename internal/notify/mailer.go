package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"time"

	"github.com/jordan-wright/email"
	"go.uber.org/zap"

	"github.com/JakeFAU/pagewatch/internal/config"
)

// PlainFallback is the text/plain alternative shipped with every report.
const PlainFallback = "This is an HTML email. If you see this, your mail client does not support HTML."

const (
	defaultSMTPPort    = 587
	defaultSMTPTimeout = 30 * time.Second
)

// Message is one outgoing report.
type Message struct {
	Subject string
	HTML    string
	To      []string
	// From overrides the configured SMTP sender when set.
	From string
}

// SendError wraps a failure at a specific stage of the SMTP session.
type SendError struct {
	Stage string
	Err   error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("smtp %s: %v", e.Stage, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// ErrSTARTTLSUnsupported is returned when the server does not offer STARTTLS.
// Credentials are never sent over a plaintext session.
var ErrSTARTTLSUnsupported = errors.New("server does not advertise STARTTLS")

type dialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Mailer submits reports to an SMTP relay on the submission port, upgrading
// the session with STARTTLS and authenticating with PLAIN.
type Mailer struct {
	cfg       config.SMTPConfig
	dial      dialFunc
	tlsConfig *tls.Config
	logger    *zap.Logger
}

// NewMailer builds a Mailer for cfg.
func NewMailer(cfg config.SMTPConfig, logger *zap.Logger) *Mailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Port == 0 {
		cfg.Port = defaultSMTPPort
	}
	return &Mailer{
		cfg:    cfg,
		dial:   (&net.Dialer{}).DialContext,
		logger: logger,
	}
}

// Send delivers msg. Missing settings yield a *config.ConfigError; transport
// failures yield a *SendError naming the failed stage.
func (m *Mailer) Send(ctx context.Context, msg Message) error {
	to := config.ParseRecipients(msg.To...)
	if len(to) == 0 {
		return config.ErrNoRecipients
	}
	from, err := m.sender(msg)
	if err != nil {
		return err
	}

	envFrom, envTo, err := envelope(from, to)
	if err != nil {
		return err
	}

	e := email.NewEmail()
	e.From = from
	e.To = to
	e.Subject = msg.Subject
	e.Text = []byte(PlainFallback)
	e.HTML = []byte(msg.HTML)
	raw, err := e.Bytes()
	if err != nil {
		return &SendError{Stage: "compose", Err: err}
	}

	start := time.Now()
	if err := m.deliver(ctx, envFrom, envTo, raw); err != nil {
		m.logger.Warn("SMTP delivery failed",
			zap.String("host", m.cfg.Host),
			zap.Int("port", m.cfg.Port),
			zap.Error(err),
		)
		return err
	}
	m.logger.Info("Report email sent",
		zap.Strings("to", to),
		zap.String("subject", msg.Subject),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

func (m *Mailer) sender(msg Message) (string, error) {
	switch {
	case m.cfg.Host == "":
		return "", &config.ConfigError{Field: "smtp.host", Reason: "is required (set SMTP_HOST)"}
	case m.cfg.Username == "":
		return "", &config.ConfigError{Field: "smtp.username", Reason: "is required (set SMTP_USER)"}
	case m.cfg.Password == "":
		return "", &config.ConfigError{Field: "smtp.password", Reason: "is required (set SMTP_PASS)"}
	}
	if msg.From != "" {
		return msg.From, nil
	}
	if m.cfg.From != "" {
		return m.cfg.From, nil
	}
	return "", &config.ConfigError{Field: "smtp.from", Reason: "is required (set SMTP_FROM or EMAIL_FROM)"}
}

// envelope reduces header addresses such as "Page Watch <watch@example.com>"
// to the bare addresses MAIL FROM and RCPT TO take.
func envelope(from string, to []string) (string, []string, error) {
	sender, err := mail.ParseAddress(from)
	if err != nil {
		return "", nil, &config.ConfigError{Field: "smtp.from", Reason: fmt.Sprintf("invalid address %q: %v", from, err)}
	}
	rcpts := make([]string, 0, len(to))
	for _, addr := range to {
		parsed, err := mail.ParseAddress(addr)
		if err != nil {
			return "", nil, &config.ConfigError{Field: "email.to", Reason: fmt.Sprintf("invalid address %q: %v", addr, err)}
		}
		rcpts = append(rcpts, parsed.Address)
	}
	return sender.Address, rcpts, nil
}

func (m *Mailer) timeout() time.Duration {
	if m.cfg.TimeoutSeconds > 0 {
		return time.Duration(m.cfg.TimeoutSeconds) * time.Second
	}
	return defaultSMTPTimeout
}

func (m *Mailer) deliver(ctx context.Context, from string, to []string, raw []byte) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout())
	defer cancel()

	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	conn, err := m.dial(ctx, "tcp", addr)
	if err != nil {
		return &SendError{Stage: "dial", Err: err}
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	client, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return &SendError{Stage: "greeting", Err: err}
	}
	defer func() { _ = client.Close() }()

	if ok, _ := client.Extension("STARTTLS"); !ok {
		return &SendError{Stage: "starttls", Err: ErrSTARTTLSUnsupported}
	}
	if err := client.StartTLS(m.tls()); err != nil {
		return &SendError{Stage: "starttls", Err: err}
	}
	if err := client.Auth(smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)); err != nil {
		return &SendError{Stage: "auth", Err: err}
	}
	if err := client.Mail(from); err != nil {
		return &SendError{Stage: "mail", Err: err}
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return &SendError{Stage: "rcpt", Err: fmt.Errorf("%s: %w", rcpt, err)}
		}
	}
	w, err := client.Data()
	if err != nil {
		return &SendError{Stage: "data", Err: err}
	}
	if _, err := w.Write(raw); err != nil {
		_ = w.Close()
		return &SendError{Stage: "data", Err: err}
	}
	if err := w.Close(); err != nil {
		return &SendError{Stage: "data", Err: err}
	}
	if err := client.Quit(); err != nil {
		return &SendError{Stage: "quit", Err: err}
	}
	return nil
}

func (m *Mailer) tls() *tls.Config {
	if m.tlsConfig != nil {
		return m.tlsConfig
	}
	return &tls.Config{
		ServerName: m.cfg.Host,
		MinVersion: tls.VersionTLS12,
	}
}
