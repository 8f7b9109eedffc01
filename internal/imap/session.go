package imap

import (
	"context"
	"errors"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/rs/zerolog/log"

	"github.com/vdavid/vmail-lite/internal/mailerr"
	"github.com/vdavid/vmail-lite/internal/models"
)

// State is a step of a session's lifecycle.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateFolderLocked
	StateOperationRunning
	StateFolderUnlocked
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFolderLocked:
		return "folder_locked"
	case StateOperationRunning:
		return "operation_running"
	case StateFolderUnlocked:
		return "folder_unlocked"
	default:
		return "disconnected"
	}
}

// Manager opens one IMAP session per call. Sessions are never pooled or
// shared: each one belongs to the credentials of a single request. At most
// a fixed number of sessions per account are open at the same time.
type Manager struct {
	dialer  Dialer
	limiter *accountLimiter
	// OnTransition, when set, observes every state change. Used by tests and
	// debug logging.
	OnTransition func(State)
}

// NewManager creates a Manager allowing DefaultSessionsPerAccount
// concurrent sessions per account.
func NewManager(dialer Dialer) *Manager {
	return NewManagerWithLimit(dialer, DefaultSessionsPerAccount)
}

// NewManagerWithLimit creates a Manager with a configurable per-account
// session limit.
func NewManagerWithLimit(dialer Dialer, sessionsPerAccount int) *Manager {
	return &Manager{dialer: dialer, limiter: newAccountLimiter(sessionsPerAccount)}
}

// Session is a logged-in connection with no folder selected.
type Session struct {
	conn    Conn
	creds   models.Credentials
	manager *Manager
	closed  bool
	system  *SystemFolders
}

// Mailbox is a session with one folder selected. The selection is the
// folder lock: it is held for the whole operation and released before the
// connection closes.
type Mailbox struct {
	*Session
	Path   string
	Role   models.FolderRole
	Status *imap.MailboxStatus
}

func (m *Manager) transition(s State) {
	if m.OnTransition != nil {
		m.OnTransition(s)
	}
}

// Connect dials and logs in. The caller must Close the session.
func (m *Manager) Connect(ctx context.Context, creds models.Credentials) (*Session, error) {
	m.transition(StateConnecting)

	conn, err := m.dialer.Dial(ctx, creds)
	if err != nil {
		m.transition(StateDisconnected)
		return nil, mailerr.New(mailerr.KindConnectivity, "connect", err)
	}

	if err := conn.Login(creds.Address, creds.Secret); err != nil {
		s := &Session{conn: conn, manager: m}
		s.Close()
		return nil, classifyConnectError("login", err)
	}

	m.transition(StateConnected)
	return &Session{conn: conn, creds: creds, manager: m}, nil
}

// Close logs out and closes the socket. Safe to call more than once; only
// the first call touches the connection.
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.closed = true

	if err := s.conn.Logout(); err != nil && !errors.Is(err, client.ErrAlreadyLoggedOut) {
		log.Debug().Err(err).Msg("IMAP: logout failed")
	}
	_ = s.conn.Terminate()
	s.manager.transition(StateDisconnected)
}

// WithSession runs op on a fresh logged-in session and always closes it.
// ctx only bounds the wait for a free session slot. Once connected,
// cancellation does not cut the session short: a half-finished sequence
// could leave the server holding a selected folder.
func (m *Manager) WithSession(ctx context.Context, creds models.Credentials, op func(*Session) error) error {
	release, err := m.limiter.acquire(ctx, creds)
	if err != nil {
		return err
	}
	defer release()

	ctx = context.WithoutCancel(ctx)

	s, err := m.Connect(ctx, creds)
	if err != nil {
		return err
	}
	activeSessions.Inc()
	defer activeSessions.Dec()
	defer s.Close()

	return op(s)
}

// WithFolder runs op with the folder named by query selected. query is an
// API folder alias (INBOX, SENT, SPAM, ...) or a literal server path.
func (m *Manager) WithFolder(ctx context.Context, creds models.Credentials, query string, op func(*Mailbox) error) error {
	return m.WithSession(ctx, creds, func(s *Session) error {
		path, role, err := s.ResolveFolder(query)
		if err != nil {
			return err
		}
		return s.WithLocked(path, role, op)
	})
}

// WithLocked selects path, runs op and releases the selection even when op
// fails. A release failure is logged, not returned: the operation's outcome
// stands and the connection is closed right after anyway.
func (s *Session) WithLocked(path string, role models.FolderRole, op func(*Mailbox) error) error {
	status, err := s.conn.Select(path, false)
	if err != nil {
		return classify("select "+path, err, mailerr.KindLock)
	}
	s.manager.transition(StateFolderLocked)

	mbox := &Mailbox{Session: s, Path: path, Role: role, Status: status}
	defer s.release(path)

	s.manager.transition(StateOperationRunning)
	return op(mbox)
}

func (s *Session) release(path string) {
	err := s.conn.Unselect()
	if errors.Is(err, client.ErrExtensionUnsupported) {
		err = s.conn.Close()
	}
	if err != nil {
		log.Warn().Err(err).Str("folder", path).Msg("IMAP: failed to release folder")
		return
	}
	s.manager.transition(StateFolderUnlocked)
}

// SystemFolders lists the folders once per session and resolves the system
// roles from that listing.
func (s *Session) SystemFolders() (SystemFolders, error) {
	if s.system != nil {
		return *s.system, nil
	}

	listing, err := s.ListFolders()
	if err != nil {
		return SystemFolders{}, err
	}

	system, fallbacks := ResolveSystemFolders(listing)
	for _, role := range fallbacks {
		log.Debug().Str("role", string(role)).Str("fallback", system.Path(role)).
			Msg("IMAP: no folder matched role, using canonical name")
	}

	s.system = &system
	return system, nil
}

// ResolveFolder maps an API folder query to a server path, listing folders
// only when the query names a system role.
func (s *Session) ResolveFolder(query string) (string, models.FolderRole, error) {
	if !NeedsResolution(query) {
		path, role := ResolveFolder(query, SystemFolders{})
		return path, role, nil
	}

	system, err := s.SystemFolders()
	if err != nil {
		return "", "", err
	}
	path, role := ResolveFolder(query, system)
	return path, role, nil
}

// Credentials returns the credentials the session was opened with.
func (s *Session) Credentials() models.Credentials {
	return s.creds
}
