package delivery

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

// DefaultTimeout bounds the dial of each submission attempt.
const DefaultTimeout = 15 * time.Second

// Security is how a submission connection is protected.
type Security int

const (
	// StartTLS connects in plain text and upgrades before authenticating.
	StartTLS Security = iota
	// ImplicitTLS speaks TLS from the first byte.
	ImplicitTLS
	// Plain never uses TLS. Only meant for local test servers.
	Plain
)

func (s Security) String() string {
	switch s {
	case ImplicitTLS:
		return "tls"
	case Plain:
		return "plain"
	default:
		return "starttls"
	}
}

// Submission is one message handed to one SMTP server.
type Submission struct {
	Host     string
	Port     int
	Security Security
	Username string
	Password string
	From     string
	To       []string
	Raw      []byte
}

// Transport submits a message once, with no retries.
type Transport interface {
	Submit(ctx context.Context, sub Submission) error
}

// SMTPTransport submits over SMTP with AUTH PLAIN.
type SMTPTransport struct {
	Timeout            time.Duration
	InsecureSkipVerify bool
}

func (t *SMTPTransport) timeout() time.Duration {
	if t.Timeout > 0 {
		return t.Timeout
	}
	return DefaultTimeout
}

func (t *SMTPTransport) Submit(ctx context.Context, sub Submission) error {
	addr := net.JoinHostPort(sub.Host, strconv.Itoa(sub.Port))
	timeout := t.timeout()
	tlsConfig := &tls.Config{
		ServerName:         sub.Host,
		InsecureSkipVerify: t.InsecureSkipVerify,
	}

	dialer := &net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", addr, err)
	}

	var c *smtp.Client
	switch sub.Security {
	case StartTLS:
		// Greets, says EHLO and upgrades before anything else is sent.
		c, err = smtp.NewClientStartTLS(conn, tlsConfig)
		if err != nil {
			_ = conn.Close()
			return fmt.Errorf("failed to start TLS with %s: %w", addr, err)
		}
	case ImplicitTLS:
		c = smtp.NewClient(tls.Client(conn, tlsConfig))
	default:
		c = smtp.NewClient(conn)
	}
	c.CommandTimeout = timeout
	defer func() {
		_ = c.Close()
	}()

	if err := c.Auth(sasl.NewPlainClient("", sub.Username, sub.Password)); err != nil {
		return fmt.Errorf("failed to authenticate with %s: %w", addr, err)
	}

	if err := c.SendMail(sub.From, sub.To, bytes.NewReader(sub.Raw)); err != nil {
		return fmt.Errorf("failed to send mail through %s: %w", addr, err)
	}

	return c.Quit()
}
