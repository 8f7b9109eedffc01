package testutil

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

var errBadCredentials = errors.New("invalid username or password")

// MemoryBackend is a simple in-memory SMTP backend for testing. It requires
// AUTH PLAIN and, when Password is set, checks it.
type MemoryBackend struct {
	mu       sync.Mutex
	messages []*ReceivedMessage
	password string
}

// ReceivedMessage is one message accepted by the test server.
type ReceivedMessage struct {
	Username string
	From     string
	To       []string
	Data     []byte
	// TLS is set when the message arrived over an encrypted connection.
	TLS bool
}

// NewMemoryBackend creates a new in-memory SMTP backend.
func NewMemoryBackend(password string) *MemoryBackend {
	return &MemoryBackend{password: password}
}

// NewSession creates a new SMTP session.
func (b *MemoryBackend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	return &memorySession{backend: b, conn: c}, nil
}

// Messages returns all received messages.
func (b *MemoryBackend) Messages() []*ReceivedMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*ReceivedMessage(nil), b.messages...)
}

type memorySession struct {
	backend  *MemoryBackend
	conn     *smtp.Conn
	username string
	from     string
	to       []string
}

func (s *memorySession) AuthMechanisms() []string {
	return []string{sasl.Plain}
}

func (s *memorySession) Auth(mech string) (sasl.Server, error) {
	return sasl.NewPlainServer(func(identity, username, password string) error {
		if s.backend.password != "" && password != s.backend.password {
			return errBadCredentials
		}
		s.username = username
		return nil
	}), nil
}

func (s *memorySession) Mail(from string, opts *smtp.MailOptions) error {
	if s.username == "" {
		return smtp.ErrAuthRequired
	}
	s.from = from
	return nil
}

func (s *memorySession) Rcpt(to string, opts *smtp.RcptOptions) error {
	s.to = append(s.to, to)
	return nil
}

func (s *memorySession) Data(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	_, encrypted := s.conn.TLSConnectionState()

	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()

	s.backend.messages = append(s.backend.messages, &ReceivedMessage{
		Username: s.username,
		From:     s.from,
		To:       s.to,
		Data:     data,
		TLS:      encrypted,
	})

	return nil
}

func (s *memorySession) Reset() {
	s.from = ""
	s.to = nil
}

func (s *memorySession) Logout() error {
	return nil
}

// TestSMTPServer represents a test SMTP server instance.
type TestSMTPServer struct {
	Server  *smtp.Server
	Address string
	Backend *MemoryBackend
	cleanup func()
}

// SMTPSecurity selects how the test SMTP server protects connections.
type SMTPSecurity int

const (
	// SMTPPlain never offers TLS.
	SMTPPlain SMTPSecurity = iota
	// SMTPStartTLS accepts plain connections and advertises STARTTLS.
	SMTPStartTLS
	// SMTPImplicitTLS speaks TLS from the first byte.
	SMTPImplicitTLS
)

// StartSMTPServer starts a plain-text SMTP server on a random local port.
// Any username is accepted with the given password; an empty password
// accepts everything. The caller must Close it.
func StartSMTPServer(password string) (*TestSMTPServer, error) {
	return StartSMTPServerWithSecurity(password, SMTPPlain)
}

// StartSMTPServerWithSecurity is StartSMTPServer with a self-signed
// certificate for 127.0.0.1 when security is not SMTPPlain. Clients must
// skip certificate verification.
func StartSMTPServerWithSecurity(password string, security SMTPSecurity) (*TestSMTPServer, error) {
	be := NewMemoryBackend(password)

	s := smtp.NewServer(be)
	s.AllowInsecureAuth = true
	s.Domain = "localhost"

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %w", err)
	}

	if security != SMTPPlain {
		tlsConfig, err := selfSignedTLSConfig()
		if err != nil {
			_ = listener.Close()
			return nil, err
		}
		s.TLSConfig = tlsConfig
		if security == SMTPImplicitTLS {
			listener = tls.NewListener(listener, tlsConfig)
		}
	}

	go func() {
		_ = s.Serve(listener)
	}()

	// Give server time to start
	time.Sleep(50 * time.Millisecond)

	return &TestSMTPServer{
		Server:  s,
		Address: listener.Addr().String(),
		Backend: be,
		cleanup: func() { _ = s.Close() },
	}, nil
}

// NewTestSMTPServer starts an SMTP server that is shut down when the test
// finishes.
func NewTestSMTPServer(t *testing.T, password string) *TestSMTPServer {
	t.Helper()

	return NewTestSMTPServerWithSecurity(t, password, SMTPPlain)
}

// NewTestSMTPServerWithSecurity is NewTestSMTPServer with TLS.
func NewTestSMTPServerWithSecurity(t *testing.T, password string, security SMTPSecurity) *TestSMTPServer {
	t.Helper()

	srv, err := StartSMTPServerWithSecurity(password, security)
	if err != nil {
		t.Fatalf("Failed to start SMTP server: %v", err)
	}
	t.Cleanup(srv.Close)

	return srv
}

// Close shuts down the test SMTP server.
func (s *TestSMTPServer) Close() {
	if s.cleanup != nil {
		s.cleanup()
		s.cleanup = nil
	}
}

// Port returns the port the server listens on.
func (s *TestSMTPServer) Port() int {
	_, port, _ := net.SplitHostPort(s.Address)
	n, _ := strconv.Atoi(port)
	return n
}

// Messages returns all messages received by the server.
func (s *TestSMTPServer) Messages() []*ReceivedMessage {
	return s.Backend.Messages()
}

func selfSignedTLSConfig() (*tls.Config, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "localhost"},
		DNSNames:     []string{"localhost"},
		IPAddresses:  []net.IP{net.IPv4(127, 0, 0, 1)},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("failed to create certificate: %w", err)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{{Certificate: [][]byte{der}, PrivateKey: key}},
	}, nil
}
