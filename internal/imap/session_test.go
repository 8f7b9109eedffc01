package imap

import (
	"context"
	"errors"
	"testing"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vdavid/vmail-lite/internal/mailerr"
	"github.com/vdavid/vmail-lite/internal/models"
	"github.com/vdavid/vmail-lite/internal/testutil"
)

type fakeDialer struct {
	conn  *testutil.FakeIMAPConn
	err   error
	dials int
}

func (d *fakeDialer) Dial(context.Context, models.Credentials) (Conn, error) {
	d.dials++
	if d.err != nil {
		return nil, d.err
	}
	return d.conn, nil
}

var testCreds = models.Credentials{Address: "ali@example.com", Secret: "secret", Host: "mail.example.com"}

func newTestManager(conn *testutil.FakeIMAPConn) (*Manager, *[]State) {
	var states []State
	m := NewManager(&fakeDialer{conn: conn})
	m.OnTransition = func(s State) { states = append(states, s) }
	return m, &states
}

func indexOf(calls []string, call string) int {
	for i, c := range calls {
		if c == call {
			return i
		}
	}
	return -1
}

func TestWithFolderLifecycle(t *testing.T) {
	conn := testutil.NewFakeIMAPConn()
	m, states := newTestManager(conn)

	var gotPath string
	err := m.WithFolder(context.Background(), testCreds, "INBOX", func(mbox *Mailbox) error {
		gotPath = mbox.Path
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, "INBOX", gotPath)
	assert.Equal(t, []State{
		StateConnecting,
		StateConnected,
		StateFolderLocked,
		StateOperationRunning,
		StateFolderUnlocked,
		StateDisconnected,
	}, *states)
	assert.Equal(t, []string{"Login", "Select", "Unselect", "Logout", "Terminate"}, conn.Calls)
}

func TestWithFolderCleanupOnFailure(t *testing.T) {
	opErr := errors.New("boom")

	tests := []struct {
		name       string
		failCall   string
		opErr      error
		wantKind   mailerr.Kind
		wantSelect bool
	}{
		{name: "login rejected", failCall: "Login", wantKind: mailerr.KindAuthentication},
		{name: "select fails", failCall: "Select", wantKind: mailerr.KindLock},
		{name: "operation fails", opErr: opErr, wantKind: mailerr.KindInternal, wantSelect: true},
		{name: "unselect fails", failCall: "Unselect", wantKind: -1, wantSelect: true},
		{name: "logout fails", failCall: "Logout", wantKind: -1, wantSelect: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := testutil.NewFakeIMAPConn()
			if tt.failCall != "" {
				conn.Fail[tt.failCall] = errors.New(tt.failCall + " failed")
			}
			m, states := newTestManager(conn)

			err := m.WithFolder(context.Background(), testCreds, "INBOX", func(*Mailbox) error {
				return tt.opErr
			})

			if tt.wantKind < 0 {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Equal(t, tt.wantKind, mailerr.KindOf(err))
			}

			assert.Equal(t, 1, conn.Terminates, "connection must be closed exactly once")
			assert.Equal(t, StateDisconnected, (*states)[len(*states)-1])

			unselect := indexOf(conn.Calls, "Unselect")
			logout := indexOf(conn.Calls, "Logout")
			if tt.wantSelect {
				require.NotEqual(t, -1, unselect, "lock must be released")
				assert.Less(t, unselect, logout, "lock must be released before logout")
			} else {
				assert.Equal(t, -1, unselect)
			}
		})
	}
}

func TestWithFolderOperationErrorIsReturned(t *testing.T) {
	conn := testutil.NewFakeIMAPConn()
	m, _ := newTestManager(conn)
	opErr := errors.New("boom")

	err := m.WithFolder(context.Background(), testCreds, "INBOX", func(*Mailbox) error {
		return opErr
	})

	assert.ErrorIs(t, err, opErr)
}

func TestReleaseFallsBackToClose(t *testing.T) {
	conn := testutil.NewFakeIMAPConn()
	conn.Fail["Unselect"] = client.ErrExtensionUnsupported
	m, states := newTestManager(conn)

	err := m.WithFolder(context.Background(), testCreds, "INBOX", func(*Mailbox) error { return nil })

	require.NoError(t, err)
	assert.Less(t, indexOf(conn.Calls, "Close"), indexOf(conn.Calls, "Logout"))
	assert.Contains(t, *states, StateFolderUnlocked)
}

func TestConnectDialFailure(t *testing.T) {
	m := NewManager(&fakeDialer{err: errors.New("connection refused")})

	_, err := m.Connect(context.Background(), testCreds)

	require.Error(t, err)
	assert.Equal(t, mailerr.KindConnectivity, mailerr.KindOf(err))
}

func TestWithFolderIgnoresCancellation(t *testing.T) {
	conn := testutil.NewFakeIMAPConn()
	m, _ := newTestManager(conn)

	ctx, cancel := context.WithCancel(context.Background())
	err := m.WithFolder(ctx, testCreds, "INBOX", func(*Mailbox) error {
		cancel()
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, conn.CallCount("Unselect"))
	assert.Equal(t, 1, conn.Terminates)
}

func TestWithFolderResolvesSystemRole(t *testing.T) {
	conn := testutil.NewFakeIMAPConn()
	conn.Folders = []*imap.MailboxInfo{
		{Name: "INBOX"},
		{Name: "Çöp Kutusu"},
		{Name: "Deleted", Attributes: []string{imap.TrashAttr}},
	}
	m, _ := newTestManager(conn)

	var got *Mailbox
	err := m.WithFolder(context.Background(), testCreds, "TRASH", func(mbox *Mailbox) error {
		got = mbox
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, "Deleted", got.Path)
	assert.Equal(t, models.RoleTrash, got.Role)
	assert.Equal(t, []string{"Deleted"}, conn.Selected)
}

func TestSystemFoldersListsOncePerSession(t *testing.T) {
	conn := testutil.NewFakeIMAPConn()
	m, _ := newTestManager(conn)

	err := m.WithSession(context.Background(), testCreds, func(s *Session) error {
		for _, q := range []string{"TRASH", "SENT", "DRAFTS"} {
			if _, _, err := s.ResolveFolder(q); err != nil {
				return err
			}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, conn.CallCount("List"))
}

func TestStarredNeverListsOrLocksOtherFolders(t *testing.T) {
	conn := testutil.NewFakeIMAPConn()
	m, _ := newTestManager(conn)

	err := m.WithFolder(context.Background(), testCreds, "STARRED", func(mbox *Mailbox) error {
		assert.Equal(t, models.RoleStarred, mbox.Role)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"INBOX"}, conn.Selected)
	assert.Zero(t, conn.CallCount("List"))
}
