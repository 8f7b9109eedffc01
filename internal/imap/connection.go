package imap

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	stdlog "log"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/rs/zerolog/log"

	"github.com/vdavid/vmail-lite/internal/mailerr"
	"github.com/vdavid/vmail-lite/internal/models"
)

// DefaultTimeout bounds connect, greeting and login.
const DefaultTimeout = 15 * time.Second

// Dialer opens a connection that has received the server greeting but is not
// logged in yet.
type Dialer interface {
	Dial(ctx context.Context, creds models.Credentials) (Conn, error)
}

// NetDialer dials real IMAP servers. With UseTLS the connection uses implicit
// TLS, otherwise it starts in plain text and upgrades with STARTTLS when the
// server offers it.
type NetDialer struct {
	Timeout            time.Duration
	InsecureSkipVerify bool
}

func (d *NetDialer) timeout() time.Duration {
	if d.Timeout > 0 {
		return d.Timeout
	}
	return DefaultTimeout
}

func (d *NetDialer) Dial(ctx context.Context, creds models.Credentials) (Conn, error) {
	addr := creds.IMAPAddress()
	timeout := d.timeout()
	tlsConfig := &tls.Config{
		ServerName:         creds.Host,
		InsecureSkipVerify: d.InsecureSkipVerify,
	}

	netDialer := &net.Dialer{Timeout: timeout}
	rawConn, err := netDialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}

	conn := rawConn
	if creds.UseTLS {
		conn = tls.Client(rawConn, tlsConfig)
	}

	// The greeting is read inside client.New, so the deadline has to be set
	// on the socket beforehand.
	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to set deadline: %w", err)
	}

	c, err := client.New(conn)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to read greeting from %s: %w", addr, err)
	}
	c.ErrorLog = stdlog.New(log.Logger.With().Str("component", "imap").Logger(), "", 0)
	c.Timeout = timeout

	if !creds.UseTLS {
		if ok, _ := c.SupportStartTLS(); ok {
			if err := c.StartTLS(tlsConfig); err != nil {
				_ = c.Terminate()
				return nil, fmt.Errorf("failed to start TLS: %w", err)
			}
		}
	}

	return &timedClient{Client: c}, nil
}

// timedClient drops the handshake timeout once the session is logged in, so
// large fetches are not cut off.
type timedClient struct {
	*client.Client
}

func (c *timedClient) Login(username, password string) error {
	if err := c.Client.Login(username, password); err != nil {
		return err
	}
	c.Client.Timeout = 0
	return nil
}

// classifyConnectError sorts a dial or login failure into authentication or
// connectivity.
func classifyConnectError(op string, err error) error {
	if isNetworkError(err) {
		return mailerr.New(mailerr.KindConnectivity, op, err)
	}
	return mailerr.New(mailerr.KindAuthentication, op, err)
}

// classify wraps err with kind unless it is already classified or is a
// transport failure.
func classify(op string, err error, kind mailerr.Kind) error {
	if err == nil {
		return nil
	}
	var classified *mailerr.Error
	if errors.As(err, &classified) {
		return err
	}
	if isNetworkError(err) {
		return mailerr.New(mailerr.KindConnectivity, op, err)
	}
	return mailerr.New(kind, op, err)
}

func isNetworkError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var statusErr *imap.ErrStatusResp
	if errors.As(err, &statusErr) {
		return false
	}

	switch {
	case errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ETIMEDOUT),
		errors.Is(err, context.DeadlineExceeded):
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection closed") || strings.Contains(msg, "tls:")
}
