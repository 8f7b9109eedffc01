package testutil

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/backend"
	"github.com/emersion/go-imap/backend/memory"
	imapclient "github.com/emersion/go-imap/client"
	"github.com/emersion/go-imap/server"

	"github.com/vdavid/vmail-lite/internal/models"
)

// TestIMAPServer represents a test IMAP server instance.
type TestIMAPServer struct {
	Server   *server.Server
	Address  string
	Backend  *TestBackend
	cleanup  func()
	username string
	password string
}

// TestBackend wraps the go-imap memory backend with the two things real
// providers have and the memory backend lacks: MOVE and special-use
// attributes on folders.
type TestBackend struct {
	*memory.Backend

	mu    sync.Mutex
	attrs map[string][]string
}

// Login accepts the memory user with or without a domain, so tests can use
// a real-looking address like username@example.com.
func (b *TestBackend) Login(conn *imap.ConnInfo, username, password string) (backend.User, error) {
	local, _, _ := strings.Cut(username, "@")
	user, err := b.Backend.Login(conn, local, password)
	if err != nil {
		return nil, err
	}
	return &testUser{User: user, backend: b}, nil
}

func (b *TestBackend) attributes(name string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.attrs[name]...)
}

func (b *TestBackend) setAttributes(name string, attrs []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attrs[name] = attrs
}

type testUser struct {
	backend.User
	backend *TestBackend
}

func (u *testUser) ListMailboxes(subscribed bool) ([]backend.Mailbox, error) {
	mailboxes, err := u.User.ListMailboxes(subscribed)
	if err != nil {
		return nil, err
	}
	wrapped := make([]backend.Mailbox, len(mailboxes))
	for i, m := range mailboxes {
		wrapped[i] = &testMailbox{Mailbox: m, user: u}
	}
	return wrapped, nil
}

func (u *testUser) GetMailbox(name string) (backend.Mailbox, error) {
	m, err := u.User.GetMailbox(name)
	if err != nil {
		return nil, err
	}
	return &testMailbox{Mailbox: m, user: u}, nil
}

type testMailbox struct {
	backend.Mailbox
	user *testUser
}

func (m *testMailbox) Info() (*imap.MailboxInfo, error) {
	info, err := m.Mailbox.Info()
	if err != nil {
		return nil, err
	}
	info.Attributes = append(info.Attributes, m.user.backend.attributes(m.Name())...)
	return info, nil
}

// MoveMessages implements backend.MoveMailbox as copy, flag and expunge.
func (m *testMailbox) MoveMessages(uid bool, seqSet *imap.SeqSet, dest string) error {
	if err := m.CopyMessages(uid, seqSet, dest); err != nil {
		return err
	}
	if err := m.UpdateMessagesFlags(uid, seqSet, imap.AddFlags, []string{imap.DeletedFlag}); err != nil {
		return err
	}
	return m.Expunge()
}

// StartIMAPServer starts an IMAP server with an in-memory backend on a
// random local port. The memory backend has a single user "username" (also
// reachable as username@example.com) with password "password" and one
// message (UID 6) in INBOX. The caller must Close it.
func StartIMAPServer() (*TestIMAPServer, error) {
	be := &TestBackend{Backend: memory.New(), attrs: make(map[string][]string)}

	s := server.New(be)
	s.AllowInsecureAuth = true

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %w", err)
	}

	go func() {
		_ = s.Serve(listener)
	}()

	// Give server time to start
	time.Sleep(50 * time.Millisecond)

	return &TestIMAPServer{
		Server:   s,
		Address:  listener.Addr().String(),
		Backend:  be,
		cleanup:  func() { _ = s.Close() },
		username: "username@example.com",
		password: "password",
	}, nil
}

// NewTestIMAPServer starts an IMAP server that is shut down when the test
// finishes.
func NewTestIMAPServer(t *testing.T) *TestIMAPServer {
	t.Helper()

	srv, err := StartIMAPServer()
	if err != nil {
		t.Fatalf("Failed to start IMAP server: %v", err)
	}
	t.Cleanup(srv.Close)

	return srv
}

// Close shuts down the test IMAP server.
func (s *TestIMAPServer) Close() {
	if s.cleanup != nil {
		s.cleanup()
		s.cleanup = nil
	}
}

// Credentials returns plain-text credentials for the default user.
func (s *TestIMAPServer) Credentials() models.Credentials {
	host, portStr, _ := net.SplitHostPort(s.Address)
	port, _ := strconv.Atoi(portStr)
	return models.Credentials{
		Address: s.username,
		Secret:  s.password,
		Host:    host,
		Port:    port,
	}
}

// Dial logs in to the server as the default user.
func (s *TestIMAPServer) Dial() (*imapclient.Client, error) {
	client, err := imapclient.Dial(s.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	if err := client.Login(s.username, s.password); err != nil {
		_ = client.Logout()
		return nil, fmt.Errorf("failed to login: %w", err)
	}

	return client, nil
}

// Connect creates a new IMAP client connection to the test server.
func (s *TestIMAPServer) Connect(t *testing.T) (*imapclient.Client, func()) {
	t.Helper()

	client, err := s.Dial()
	if err != nil {
		t.Fatalf("Failed to connect to test server: %v", err)
	}

	return client, func() { _ = client.Logout() }
}

// AddFolder creates a folder carrying the given special-use attributes.
func (s *TestIMAPServer) AddFolder(name string, attrs ...string) error {
	client, err := s.Dial()
	if err != nil {
		return err
	}
	defer func() { _ = client.Logout() }()

	if err := client.Create(name); err != nil {
		return fmt.Errorf("failed to create folder %s: %w", name, err)
	}
	s.Backend.setAttributes(name, attrs)
	return nil
}

// CreateFolder is AddFolder failing the test on error.
func (s *TestIMAPServer) CreateFolder(t *testing.T, name string, attrs ...string) {
	t.Helper()

	if err := s.AddFolder(name, attrs...); err != nil {
		t.Fatalf("Failed to create folder %s: %v", name, err)
	}
}

// Append stores raw in folder and returns the UID it was given. Bare LF
// line endings are converted to CRLF.
func (s *TestIMAPServer) Append(folder, raw string, flags ...string) (uint32, error) {
	client, err := s.Dial()
	if err != nil {
		return 0, err
	}
	defer func() { _ = client.Logout() }()

	raw = strings.ReplaceAll(strings.ReplaceAll(raw, "\r\n", "\n"), "\n", "\r\n")
	if err := client.Append(folder, flags, time.Now(), strings.NewReader(raw)); err != nil {
		return 0, fmt.Errorf("failed to append message: %w", err)
	}

	status, err := client.Select(folder, true)
	if err != nil {
		return 0, fmt.Errorf("failed to select folder: %w", err)
	}

	return status.UidNext - 1, nil
}

// AddMessage is Append failing the test on error.
func (s *TestIMAPServer) AddMessage(t *testing.T, folder, raw string, flags ...string) uint32 {
	t.Helper()

	uid, err := s.Append(folder, raw, flags...)
	if err != nil {
		t.Fatalf("Failed to add message to %s: %v", folder, err)
	}
	return uid
}

// Messages returns the messages currently stored in folder.
func (s *TestIMAPServer) Messages(t *testing.T, folder string) []*memory.Message {
	t.Helper()

	user, err := s.Backend.Login(nil, s.username, s.password)
	if err != nil {
		t.Fatalf("Failed to log in to backend: %v", err)
	}
	mbox, err := user.GetMailbox(folder)
	if err != nil {
		t.Fatalf("Failed to get folder %s: %v", folder, err)
	}

	return mbox.(*testMailbox).Mailbox.(*memory.Mailbox).Messages
}

// SimpleMessage builds a small plain-text message.
func SimpleMessage(from, to, subject, body string) string {
	return "From: " + from + "\r\n" +
		"To: " + to + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"Date: Wed, 11 May 2016 14:31:59 +0000\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		body + "\r\n"
}
